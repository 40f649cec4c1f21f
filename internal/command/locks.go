package command

import "sync"

// senderLocks serialises work per sender. Entries are dropped once no
// goroutine holds or waits for them.
type senderLocks struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

func newSenderLocks() *senderLocks {
	return &senderLocks{locks: make(map[string]*senderLock)}
}

func (s *senderLocks) lock(sender string) func() {
	s.mu.Lock()
	l, ok := s.locks[sender]
	if !ok {
		l = &senderLock{}
		s.locks[sender] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sender)
		}
		s.mu.Unlock()
	}
}

func (s *senderLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
