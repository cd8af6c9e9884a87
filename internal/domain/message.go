package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BatchResult statuses.
const (
	ResultStatusCompleted = "completed"
	ResultStatusError     = "error"
)

// PendingMessage is one queued message for a conversation. It is immutable
// once stored; it exists from arrival until the drain that consumes it.
type PendingMessage struct {
	MessageID  string    `json:"message_id"`
	Text       string    `json:"text"`
	Kind       string    `json:"kind"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewPendingMessage(text, kind, sender string) *PendingMessage {
	return &PendingMessage{
		MessageID:  uuid.NewString(),
		Text:       text,
		Kind:       kind,
		Sender:     sender,
		ReceivedAt: time.Now().UTC(),
	}
}

// Batch is the drained contents of one conversation queue, handed to the
// BatchProcessor as a single unit.
type Batch struct {
	ConversationID string
	Messages       []PendingMessage
	CombinedText   string
	MessageCount   int
}

// NewBatch combines messages oldest-first, each line tagged with its 1-based
// position and original arrival timestamp.
func NewBatch(conversationID string, messages []PendingMessage) *Batch {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, m.ReceivedAt.Format(time.RFC3339), m.Text)
	}

	return &Batch{
		ConversationID: conversationID,
		Messages:       messages,
		CombinedText:   b.String(),
		MessageCount:   len(messages),
	}
}

// BatchResult records the outcome of the most recent drain for a
// conversation. It is the only flow state that outlives the flow itself,
// bounded by the response retention TTL.
type BatchResult struct {
	Outcome        string    `json:"outcome"`
	ProcessedCount int       `json:"processed_count"`
	ProcessedAt    time.Time `json:"processed_at"`
	Status         string    `json:"status"`
}

func NewCompletedResult(outcome string, processedCount int) *BatchResult {
	return &BatchResult{
		Outcome:        outcome,
		ProcessedCount: processedCount,
		ProcessedAt:    time.Now().UTC(),
		Status:         ResultStatusCompleted,
	}
}

func NewErrorResult(err error, processedCount int) *BatchResult {
	return &BatchResult{
		Outcome:        err.Error(),
		ProcessedCount: processedCount,
		ProcessedAt:    time.Now().UTC(),
		Status:         ResultStatusError,
	}
}

// FlowStatus is a read-only snapshot of one conversation's coalescing state.
type FlowStatus struct {
	ConversationID  string
	QueueSize       int64
	Locked          bool
	WindowStartedAt *time.Time
	LastResult      *BatchResult
}
