package domain

import "context"

//go:generate mockgen -source=processor.go -destination=processor_mock.go -package=domain

// BatchProcessor consumes one drained batch and produces a reply. It is the
// injected downstream strategy; implementations may take arbitrarily long
// and fail with any error.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch *Batch) (string, error)
}
