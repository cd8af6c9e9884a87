package coalesce

import (
	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
)

// AddResult reports what AddMessage did with one arrival.
type AddResult struct {
	// Immediate is true when the arrival crossed a drain threshold and the
	// batch was processed synchronously before returning.
	Immediate bool
	QueueSize int64
	// NewFlow is true when this arrival opened a fresh flow: empty queue,
	// no timer marker, lock free, all checked before the append.
	NewFlow bool
	// Result is populated only for immediate drains. A nil Result with
	// Immediate set means the drain was skipped (lock contention or an
	// already-emptied queue).
	Result *domain.BatchResult
}
