// Package admission gates inbound chat messages per sender with a
// fixed-window quota, duplicate suppression and temporary blocking.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Reason explains an admission decision.
type Reason string

const (
	ReasonAllowed   Reason = "allowed"
	ReasonDuplicate Reason = "duplicate"
	ReasonBlocked   Reason = "blocked"
)

// Decision is the outcome of Admit. BlockStarted is set only on the
// message that pushed the sender over the quota.
type Decision struct {
	Allowed      bool          `json:"allowed"`
	Reason       Reason        `json:"reason"`
	RetryAfter   time.Duration `json:"retryAfter,omitempty"`
	BlockStarted bool          `json:"blockStarted,omitempty"`
}

// SenderStatus is a snapshot of one sender's admission state.
type SenderStatus struct {
	Sender         string        `json:"sender"`
	Count          int           `json:"count"`
	Limit          int           `json:"limit"`
	Remaining      int           `json:"remaining"`
	WindowResetsIn time.Duration `json:"windowResetsIn"`
	IsBlocked      bool          `json:"isBlocked"`
	BlockedFor     time.Duration `json:"blockedFor,omitempty"`
}

// Stats summarises the controller's tracked senders.
type Stats struct {
	Tracked int `json:"tracked"`
	Blocked int `json:"blocked"`
}

// Config holds the admission limits.
type Config struct {
	Window          time.Duration
	MaxRequests     int
	BlockDuration   time.Duration
	DuplicateWindow time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the stock limits: 8 requests per minute, a three
// minute block and a two second duplicate guard.
func DefaultConfig() Config {
	return Config{
		Window:          time.Minute,
		MaxRequests:     8,
		BlockDuration:   3 * time.Minute,
		DuplicateWindow: 2 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

type senderState struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
	lastText     string
	lastAdmitted time.Time
	lastSeen     time.Time
}

// Controller tracks per-sender admission state. It is safe for concurrent use.
type Controller struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	senders map[string]*senderState
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a Controller.
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = def.BlockDuration
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = def.DuplicateWindow
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	c := &Controller{
		cfg:     cfg,
		logger:  logger.With().Str("component", "admission").Logger(),
		now:     time.Now,
		senders: make(map[string]*senderState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admit decides whether a message from sender is processed.
func (c *Controller) Admit(sender, text string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	st, ok := c.senders[sender]
	if !ok {
		st = &senderState{windowStart: now}
		c.senders[sender] = st
	}
	st.lastSeen = now

	if !st.blockedUntil.IsZero() {
		if now.Before(st.blockedUntil) {
			return Decision{Reason: ReasonBlocked, RetryAfter: st.blockedUntil.Sub(now)}
		}
		// Block expired: start over with a fresh window.
		st.blockedUntil = time.Time{}
		st.count = 0
		st.windowStart = now
	}

	if st.lastText == text && !st.lastAdmitted.IsZero() && now.Sub(st.lastAdmitted) < c.cfg.DuplicateWindow {
		return Decision{Reason: ReasonDuplicate}
	}

	if now.Sub(st.windowStart) >= c.cfg.Window {
		st.count = 0
		st.windowStart = now
	}

	st.count++
	if st.count > c.cfg.MaxRequests {
		st.blockedUntil = now.Add(c.cfg.BlockDuration)
		c.logger.Warn().
			Str("sender", sender).
			Int("count", st.count).
			Dur("blocked_for", c.cfg.BlockDuration).
			Msg("sender exceeded quota and was blocked")
		return Decision{Reason: ReasonBlocked, RetryAfter: c.cfg.BlockDuration, BlockStarted: true}
	}

	st.lastText = text
	st.lastAdmitted = now

	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// Status reports the current state of sender without counting a request.
func (c *Controller) Status(sender string) SenderStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := SenderStatus{
		Sender:    sender,
		Limit:     c.cfg.MaxRequests,
		Remaining: c.cfg.MaxRequests,
	}

	st, ok := c.senders[sender]
	if !ok {
		return status
	}

	if now.Before(st.blockedUntil) {
		status.IsBlocked = true
		status.BlockedFor = st.blockedUntil.Sub(now)
		status.Count = st.count
		status.Remaining = 0
		return status
	}

	if now.Sub(st.windowStart) < c.cfg.Window && st.blockedUntil.IsZero() {
		status.Count = st.count
		status.Remaining = max(c.cfg.MaxRequests-st.count, 0)
		status.WindowResetsIn = st.windowStart.Add(c.cfg.Window).Sub(now)
	}

	return status
}

// Unblock lifts a block on sender and resets its window. It reports
// whether the sender was blocked.
func (c *Controller) Unblock(sender string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.senders[sender]
	if !ok {
		return false
	}

	wasBlocked := c.now().Before(st.blockedUntil)
	st.blockedUntil = time.Time{}
	st.count = 0
	st.windowStart = c.now()

	if wasBlocked {
		c.logger.Info().Str("sender", sender).Msg("sender unblocked")
	}
	return wasBlocked
}

// Reset forgets all state for sender.
func (c *Controller) Reset(sender string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.senders, sender)
}

// Stats reports how many senders are tracked and blocked.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{Tracked: len(c.senders)}
	for _, st := range c.senders {
		if now.Before(st.blockedUntil) {
			stats.Blocked++
		}
	}
	return stats
}

// Cleanup evicts idle senders and returns how many were removed. Blocked
// senders are kept until their block expires.
func (c *Controller) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	idle := max(c.cfg.Window, c.cfg.DuplicateWindow)

	removed := 0
	for sender, st := range c.senders {
		if now.Before(st.blockedUntil) {
			continue
		}
		if now.Sub(st.lastSeen) >= idle {
			delete(c.senders, sender)
			removed++
		}
	}
	return removed
}

// Run periodically calls Cleanup until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.logger.Debug().Int("removed", n).Msg("evicted idle senders")
			}
		}
	}
}
