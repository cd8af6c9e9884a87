package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
)

const (
	messagesKeyPrefix = "coalesce:messages:"
	windowKeyPrefix   = "coalesce:window:"
	timerKeyPrefix    = "coalesce:timer:"
	lockKeyPrefix     = "coalesce:lock:"
	resultKeyPrefix   = "coalesce:result:"
)

type flowRepository struct {
	client *redis.Client
}

func NewFlowRepository(client *redis.Client) domain.FlowRepository {
	return &flowRepository{
		client: client,
	}
}

func (r *flowRepository) AppendMessage(ctx context.Context, conversationID string, msg *domain.PendingMessage) (int64, error) {
	if msg == nil {
		return 0, ErrInvalidMessageData
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, ErrInvalidMessageData
	}

	// RPUSH keeps range reads oldest-first.
	return r.client.RPush(ctx, messagesKeyPrefix+conversationID, data).Result()
}

func (r *flowRepository) QueueLength(ctx context.Context, conversationID string) (int64, error) {
	return r.client.LLen(ctx, messagesKeyPrefix+conversationID).Result()
}

func (r *flowRepository) PendingMessages(ctx context.Context, conversationID string) ([]domain.PendingMessage, error) {
	values, err := r.client.LRange(ctx, messagesKeyPrefix+conversationID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]domain.PendingMessage, 0, len(values))
	for _, v := range values {
		var msg domain.PendingMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return nil, ErrInvalidMessageData
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (r *flowRepository) TrimConsumed(ctx context.Context, conversationID string, count int64) error {
	// Keeps only elements after the consumed prefix; trimming the whole
	// list removes the key.
	return r.client.LTrim(ctx, messagesKeyPrefix+conversationID, count, -1).Err()
}

func (r *flowRepository) StartWindow(ctx context.Context, conversationID string, startedAt time.Time, ttl time.Duration) (bool, error) {
	value := startedAt.UTC().Format(time.RFC3339Nano)
	return r.client.SetNX(ctx, windowKeyPrefix+conversationID, value, ttl).Result()
}

func (r *flowRepository) WindowStart(ctx context.Context, conversationID string) (time.Time, bool, error) {
	value, err := r.client.Get(ctx, windowKeyPrefix+conversationID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	startedAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, ErrInvalidWindowData
	}

	return startedAt, true, nil
}

func (r *flowRepository) MarkTimer(ctx context.Context, conversationID string, ttl time.Duration) error {
	return r.client.Set(ctx, timerKeyPrefix+conversationID, "1", ttl).Err()
}

func (r *flowRepository) TimerMarked(ctx context.Context, conversationID string) (bool, error) {
	n, err := r.client.Exists(ctx, timerKeyPrefix+conversationID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *flowRepository) AcquireLock(ctx context.Context, conversationID string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKeyPrefix+conversationID, "1", ttl).Result()
}

func (r *flowRepository) IsLocked(ctx context.Context, conversationID string) (bool, error) {
	n, err := r.client.Exists(ctx, lockKeyPrefix+conversationID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *flowRepository) SaveResult(ctx context.Context, conversationID string, result *domain.BatchResult, ttl time.Duration) error {
	if result == nil {
		return ErrInvalidResultData
	}

	data, err := json.Marshal(result)
	if err != nil {
		return ErrInvalidResultData
	}

	return r.client.Set(ctx, resultKeyPrefix+conversationID, data, ttl).Err()
}

func (r *flowRepository) GetResult(ctx context.Context, conversationID string) (*domain.BatchResult, error) {
	data, err := r.client.Get(ctx, resultKeyPrefix+conversationID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}

	var result domain.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, ErrInvalidResultData
	}

	return &result, nil
}

func (r *flowRepository) ClearFlow(ctx context.Context, conversationID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, timerKeyPrefix+conversationID)
	pipe.Del(ctx, windowKeyPrefix+conversationID)
	pipe.Del(ctx, lockKeyPrefix+conversationID)

	_, err := pipe.Exec(ctx)
	return err
}
