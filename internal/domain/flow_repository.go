package domain

import (
	"context"
	"time"
)

// FlowRepository is the shared coordination state for one service
// deployment. Every method maps to a single atomic store operation (or one
// transactional pipeline); callers must never assume atomicity across
// multiple calls.
type FlowRepository interface {
	// AppendMessage pushes one message onto the conversation queue and
	// returns the new queue length. Range reads return oldest-first.
	AppendMessage(ctx context.Context, conversationID string, msg *PendingMessage) (int64, error)
	QueueLength(ctx context.Context, conversationID string) (int64, error)
	PendingMessages(ctx context.Context, conversationID string) ([]PendingMessage, error)
	// TrimConsumed drops the first count messages from the queue, keeping
	// any that arrived after the drain's range read.
	TrimConsumed(ctx context.Context, conversationID string, count int64) error

	// StartWindow records the flow's start time unless a window already
	// exists. Returns true when this call established the window.
	StartWindow(ctx context.Context, conversationID string, startedAt time.Time, ttl time.Duration) (bool, error)
	WindowStart(ctx context.Context, conversationID string) (time.Time, bool, error)

	// MarkTimer writes the advisory timer marker. Its presence is a
	// crash-recovery signal for observers, not the timer itself.
	MarkTimer(ctx context.Context, conversationID string, ttl time.Duration) error
	TimerMarked(ctx context.Context, conversationID string) (bool, error)

	// AcquireLock is the processing mutex: set-if-absent with a TTL that
	// passively releases the lock if the holder crashes. Returns true when
	// this caller now holds the lock.
	AcquireLock(ctx context.Context, conversationID string, ttl time.Duration) (bool, error)
	IsLocked(ctx context.Context, conversationID string) (bool, error)

	SaveResult(ctx context.Context, conversationID string, result *BatchResult, ttl time.Duration) error
	// GetResult returns ErrResultNotFound when no result is retained.
	GetResult(ctx context.Context, conversationID string) (*BatchResult, error)

	// ClearFlow removes the timer marker, window marker, and lock in one
	// pipeline. The queue is trimmed separately so mid-drain arrivals
	// survive.
	ClearFlow(ctx context.Context, conversationID string) error
}
