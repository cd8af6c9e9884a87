package coalesce

import (
	"sync"
	"time"
)

// Scheduler owns the process-local debounce timers, one per conversation.
// Handles are never shared across instances; a timer armed on another
// instance cannot be cancelled here, which is safe because draining an
// already-empty queue is a no-op.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the debounce timer for a conversation, cancelling any
// previously armed handle. Every arrival pushes the fire time forward.
func (s *Scheduler) Schedule(conversationID string, delay time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[conversationID]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[conversationID] == t {
			delete(s.timers, conversationID)
		}
		s.mu.Unlock()

		fire()
	})
	s.timers[conversationID] = t
}

// Cancel stops and forgets the timer handle for a conversation, if any.
func (s *Scheduler) Cancel(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[conversationID]; ok {
		t.Stop()
		delete(s.timers, conversationID)
	}
}

// Pending reports whether a timer is currently armed for a conversation.
func (s *Scheduler) Pending(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[conversationID]
	return ok
}

// Stop cancels all armed timers. Used during shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
