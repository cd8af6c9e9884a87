package domain

import (
	"context"
	"time"
)

// Drain triggers.
const (
	DrainTriggerImmediate = "immediate"
	DrainTriggerTimer     = "timer"
)

type DrainRecord struct {
	ConversationID string
	MessageCount   int
	Status         string
	Trigger        string
	Waited         time.Duration
	Duration       time.Duration
	DrainedAt      time.Time
}

type DrainResultRecorder interface {
	RecordDrain(ctx context.Context, record *DrainRecord) error
	Flush(ctx context.Context) error
	Close() error
}
