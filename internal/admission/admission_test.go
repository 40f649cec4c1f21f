package admission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestController() (*Controller, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return New(DefaultConfig(), zerolog.Nop(), WithClock(clock.Now)), clock
}

func TestAdmit_QuotaThenBlock(t *testing.T) {
	c, clock := newTestController()

	for i := 1; i <= 8; i++ {
		d := c.Admit("628111", fmt.Sprintf("msg %d", i))
		require.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, ReasonAllowed, d.Reason)
		clock.Advance(time.Second)
	}

	d := c.Admit("628111", "msg 9")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBlocked, d.Reason)
	assert.Equal(t, 3*time.Minute, d.RetryAfter)
	assert.True(t, d.BlockStarted)

	status := c.Status("628111")
	assert.True(t, status.IsBlocked)
	assert.Equal(t, 0, status.Remaining)
}

func TestAdmit_WhileBlocked(t *testing.T) {
	c, clock := newTestController()
	for i := 0; i < 9; i++ {
		c.Admit("628111", fmt.Sprintf("m%d", i))
	}

	// Blocking outlives the quota window.
	clock.Advance(2 * time.Minute)
	d := c.Admit("628111", "again")
	assert.Equal(t, ReasonBlocked, d.Reason)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.False(t, d.BlockStarted, "only the message that triggers the block starts it")

	clock.Advance(time.Minute)
	d = c.Admit("628111", "after block")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, c.Status("628111").Count)
}

func TestAdmit_WindowResets(t *testing.T) {
	c, clock := newTestController()
	for i := 0; i < 8; i++ {
		require.True(t, c.Admit("628111", fmt.Sprintf("m%d", i)).Allowed)
	}

	clock.Advance(61 * time.Second)

	d := c.Admit("628111", "fresh window")
	assert.True(t, d.Allowed)
	status := c.Status("628111")
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, 7, status.Remaining)
	assert.Equal(t, time.Minute, status.WindowResetsIn)
}

func TestAdmit_Duplicate(t *testing.T) {
	c, clock := newTestController()

	require.True(t, c.Admit("628111", "order A1 1").Allowed)

	clock.Advance(time.Second)
	d := c.Admit("628111", "order A1 1")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDuplicate, d.Reason)
	assert.Equal(t, 1, c.Status("628111").Count, "duplicates are not counted")

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, c.Admit("628111", "order A1 1").Allowed)
}

func TestAdmit_DifferentTextIsNotDuplicate(t *testing.T) {
	c, _ := newTestController()
	assert.True(t, c.Admit("628111", "status HB-1").Allowed)
	assert.True(t, c.Admit("628111", "status HB-2").Allowed)
}

func TestAdmit_SendersAreIndependent(t *testing.T) {
	c, _ := newTestController()
	for i := 0; i < 9; i++ {
		c.Admit("628111", fmt.Sprintf("m%d", i))
	}
	assert.True(t, c.Admit("628222", "hello").Allowed)
	assert.Equal(t, Stats{Tracked: 2, Blocked: 1}, c.Stats())
}

func TestStatus_UnknownSender(t *testing.T) {
	c, _ := newTestController()
	status := c.Status("nobody")
	assert.Equal(t, 0, status.Count)
	assert.Equal(t, 8, status.Limit)
	assert.Equal(t, 8, status.Remaining)
	assert.False(t, status.IsBlocked)
}

func TestUnblockAndReset(t *testing.T) {
	c, _ := newTestController()
	for i := 0; i < 9; i++ {
		c.Admit("628111", fmt.Sprintf("m%d", i))
	}

	assert.True(t, c.Unblock("628111"))
	assert.False(t, c.Unblock("628111"))
	assert.True(t, c.Admit("628111", "back").Allowed)

	c.Reset("628111")
	assert.Equal(t, 0, c.Stats().Tracked)
	assert.False(t, c.Unblock("628111"))
}

func TestCleanup_KeepsBlockedSenders(t *testing.T) {
	c, clock := newTestController()
	c.Admit("idle", "hi")
	for i := 0; i < 9; i++ {
		c.Admit("abuser", fmt.Sprintf("m%d", i))
	}

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.True(t, c.Status("abuser").IsBlocked)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 0, c.Stats().Tracked)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Millisecond
	c := New(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Concurrent admits while cleanup runs.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Admit(fmt.Sprintf("s%d", i), fmt.Sprintf("m%d", j))
			}
		}(i)
	}
	wg.Wait()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
