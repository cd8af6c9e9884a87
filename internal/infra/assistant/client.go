package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/tracing"
)

// Client delivers drained batches to the assistant endpoint over HTTP. It
// implements domain.BatchProcessor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(baseURL string, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: maxRetries,
	}
}

type processRequest struct {
	ConversationID string        `json:"conversation_id"`
	CombinedText   string        `json:"combined_text"`
	Messages       []messageItem `json:"messages"`
}

type messageItem struct {
	MessageID  string    `json:"message_id"`
	Text       string    `json:"text"`
	Kind       string    `json:"kind"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
}

type processResponse struct {
	Reply string `json:"reply"`
}

// ProcessBatch posts the combined batch and returns the assistant's reply.
// Transient failures are retried with exponential backoff; the context bounds
// the whole attempt sequence.
func (c *Client) ProcessBatch(ctx context.Context, batch *domain.Batch) (string, error) {
	items := make([]messageItem, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		items = append(items, messageItem{
			MessageID:  m.MessageID,
			Text:       m.Text,
			Kind:       m.Kind,
			Sender:     m.Sender,
			ReceivedAt: m.ReceivedAt,
		})
	}

	reqBody, err := json.Marshal(processRequest{
		ConversationID: batch.ConversationID,
		CombinedText:   batch.CombinedText,
		Messages:       items,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/process", c.baseURL)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 100 * time.Millisecond
			slog.DebugContext(ctx, "retrying assistant call",
				slog.String("conversation_id", batch.ConversationID),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		reply, err := c.doRequest(ctx, url, reqBody, batch.ConversationID)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}

	slog.ErrorContext(ctx, "all retries exhausted for assistant call",
		slog.String("conversation_id", batch.ConversationID),
		slog.Int("max_retries", c.maxRetries),
		slog.String("error", lastErr.Error()),
	)
	return "", fmt.Errorf("failed to process batch after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string, reqBody []byte, conversationID string) (string, error) {
	callCtx, span := tracing.StartAssistantCallSpan(ctx, url)
	defer span.End()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(callCtx, "failed to send request to assistant",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.WarnContext(callCtx, "unexpected status code from assistant",
			slog.String("conversation_id", conversationID),
			slog.Int("status_code", resp.StatusCode),
		)
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var procResp processResponse
	if err := json.NewDecoder(resp.Body).Decode(&procResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return procResp.Reply, nil
}
