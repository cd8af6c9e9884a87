package drainrecorder

import (
	"context"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
)

type noopRecorder struct{}

func NewNoopRecorder() domain.DrainResultRecorder {
	return &noopRecorder{}
}

func (n *noopRecorder) RecordDrain(_ context.Context, _ *domain.DrainRecord) error {
	return nil
}

func (n *noopRecorder) Flush(_ context.Context) error {
	return nil
}

func (n *noopRecorder) Close() error {
	return nil
}
