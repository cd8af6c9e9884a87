package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
)

// fakeFlowRepository is an in-memory FlowRepository for unit tests. Window
// markers honor their TTL because the ceiling check depends on expiry
// semantics; the remaining TTLs are accepted but not enforced, and
// integration tests cover their expiry behavior.
type fakeFlowRepository struct {
	mu      sync.Mutex
	queues  map[string][]domain.PendingMessage
	windows map[string]fakeWindow
	timers  map[string]bool
	locks   map[string]bool
	results map[string]*domain.BatchResult
}

type fakeWindow struct {
	startedAt time.Time
	expiresAt time.Time
}

func newFakeFlowRepository() *fakeFlowRepository {
	return &fakeFlowRepository{
		queues:  make(map[string][]domain.PendingMessage),
		windows: make(map[string]fakeWindow),
		timers:  make(map[string]bool),
		locks:   make(map[string]bool),
		results: make(map[string]*domain.BatchResult),
	}
}

func (f *fakeFlowRepository) AppendMessage(_ context.Context, conversationID string, msg *domain.PendingMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queues[conversationID] = append(f.queues[conversationID], *msg)
	return int64(len(f.queues[conversationID])), nil
}

func (f *fakeFlowRepository) QueueLength(_ context.Context, conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.queues[conversationID])), nil
}

func (f *fakeFlowRepository) PendingMessages(_ context.Context, conversationID string) ([]domain.PendingMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	messages := make([]domain.PendingMessage, len(f.queues[conversationID]))
	copy(messages, f.queues[conversationID])
	return messages, nil
}

func (f *fakeFlowRepository) TrimConsumed(_ context.Context, conversationID string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.queues[conversationID]
	if count >= int64(len(queue)) {
		delete(f.queues, conversationID)
		return nil
	}
	f.queues[conversationID] = queue[count:]
	return nil
}

func (f *fakeFlowRepository) StartWindow(_ context.Context, conversationID string, startedAt time.Time, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if w, ok := f.windows[conversationID]; ok && time.Now().Before(w.expiresAt) {
		return false, nil
	}
	f.windows[conversationID] = fakeWindow{
		startedAt: startedAt,
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

func (f *fakeFlowRepository) WindowStart(_ context.Context, conversationID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[conversationID]
	if !ok || !time.Now().Before(w.expiresAt) {
		return time.Time{}, false, nil
	}
	return w.startedAt, true, nil
}

func (f *fakeFlowRepository) MarkTimer(_ context.Context, conversationID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timers[conversationID] = true
	return nil
}

func (f *fakeFlowRepository) TimerMarked(_ context.Context, conversationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.timers[conversationID], nil
}

func (f *fakeFlowRepository) AcquireLock(_ context.Context, conversationID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.locks[conversationID] {
		return false, nil
	}
	f.locks[conversationID] = true
	return true, nil
}

func (f *fakeFlowRepository) IsLocked(_ context.Context, conversationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.locks[conversationID], nil
}

func (f *fakeFlowRepository) SaveResult(_ context.Context, conversationID string, result *domain.BatchResult, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.results[conversationID] = result
	return nil
}

func (f *fakeFlowRepository) GetResult(_ context.Context, conversationID string) (*domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result, ok := f.results[conversationID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return result, nil
}

func (f *fakeFlowRepository) ClearFlow(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.timers, conversationID)
	delete(f.windows, conversationID)
	delete(f.locks, conversationID)
	return nil
}

// flowGone reports whether all transient flow state is absent.
func (f *fakeFlowRepository) flowGone(conversationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, hasQueue := f.queues[conversationID]
	_, hasWindow := f.windows[conversationID]
	return !hasQueue && !hasWindow && !f.timers[conversationID] && !f.locks[conversationID]
}

func (f *fakeFlowRepository) setWindow(conversationID string, startedAt time.Time, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.windows[conversationID] = fakeWindow{
		startedAt: startedAt,
		expiresAt: time.Now().Add(ttl),
	}
}

func (f *fakeFlowRepository) setLock(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.locks[conversationID] = true
}
