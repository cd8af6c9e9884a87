package coalesce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KasumiMercury/primind-message-coalescing/internal/config"
	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/metrics"
	"github.com/KasumiMercury/primind-message-coalescing/internal/observability/tracing"
)

// Coordinator is the per-conversation batching engine. It decides, on every
// arrival, whether to accumulate or drain, and serializes drains across
// service instances through the repository's processing lock. All shared
// state lives in the repository; the only process-local state is the
// scheduler's timer handle map.
type Coordinator struct {
	repo      domain.FlowRepository
	processor domain.BatchProcessor
	scheduler *Scheduler
	cfg       *config.CoalesceConfig
	metrics   *metrics.CoalesceMetrics
	recorder  domain.DrainResultRecorder
}

func NewCoordinator(
	repo domain.FlowRepository,
	processor domain.BatchProcessor,
	cfg *config.CoalesceConfig,
	coalesceMetrics *metrics.CoalesceMetrics,
	recorder domain.DrainResultRecorder,
) *Coordinator {
	return &Coordinator{
		repo:      repo,
		processor: processor,
		scheduler: NewScheduler(),
		cfg:       cfg,
		metrics:   coalesceMetrics,
		recorder:  recorder,
	}
}

// AddMessage is the only mutating entry point. The message is always
// accepted; depending on thresholds the call either drains synchronously or
// (re)arms the debounce timer. Store failures propagate to the caller.
// Downstream processing failures on the immediate path surface through
// AddResult.Result.Status, never as an error return.
func (c *Coordinator) AddMessage(ctx context.Context, conversationID string, msg *domain.PendingMessage) (*AddResult, error) {
	if msg == nil || msg.Text == "" {
		return nil, domain.ErrEmptyMessage
	}

	newFlow, err := c.isNewFlow(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	queueSize, err := c.repo.AppendMessage(ctx, conversationID, msg)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordMessageReceived(ctx, newFlow)
	}

	slog.DebugContext(ctx, "message queued",
		slog.String("conversation_id", conversationID),
		slog.String("message_id", msg.MessageID),
		slog.Int64("queue_size", queueSize),
		slog.Bool("new_flow", newFlow),
	)

	drainNow, err := c.shouldDrainNow(ctx, conversationID, queueSize)
	if err != nil {
		return nil, err
	}

	if drainNow {
		result, err := c.drain(ctx, conversationID, domain.DrainTriggerImmediate)
		if err != nil {
			return nil, err
		}
		return &AddResult{
			Immediate: true,
			QueueSize: queueSize,
			NewFlow:   newFlow,
			Result:    result,
		}, nil
	}

	if err := c.scheduleDrain(ctx, conversationID); err != nil {
		return nil, err
	}

	return &AddResult{
		QueueSize: queueSize,
		NewFlow:   newFlow,
	}, nil
}

// Status composes a read-only snapshot of one conversation's flow.
func (c *Coordinator) Status(ctx context.Context, conversationID string) (*domain.FlowStatus, error) {
	queueSize, err := c.repo.QueueLength(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	locked, err := c.repo.IsLocked(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var windowStartedAt *time.Time
	if startedAt, ok, err := c.repo.WindowStart(ctx, conversationID); err != nil {
		return nil, err
	} else if ok {
		windowStartedAt = &startedAt
	}

	lastResult, err := c.repo.GetResult(ctx, conversationID)
	if err != nil && !errors.Is(err, domain.ErrResultNotFound) {
		return nil, err
	}

	return &domain.FlowStatus{
		ConversationID:  conversationID,
		QueueSize:       queueSize,
		Locked:          locked,
		WindowStartedAt: windowStartedAt,
		LastResult:      lastResult,
	}, nil
}

// LastResult returns the retained outcome of the most recent drain, or
// domain.ErrResultNotFound once the retention TTL has passed.
func (c *Coordinator) LastResult(ctx context.Context, conversationID string) (*domain.BatchResult, error) {
	return c.repo.GetResult(ctx, conversationID)
}

// Shutdown cancels all armed debounce timers. Queued messages stay in the
// store; another instance (or a restart) drains them on the next arrival.
func (c *Coordinator) Shutdown() {
	c.scheduler.Stop()
}

// isNewFlow is a computed predicate over the three pieces of shared state
// rather than a stored flag, so it can never desynchronize from them.
func (c *Coordinator) isNewFlow(ctx context.Context, conversationID string) (bool, error) {
	queueSize, err := c.repo.QueueLength(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if queueSize > 0 {
		return false, nil
	}

	timerMarked, err := c.repo.TimerMarked(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if timerMarked {
		return false, nil
	}

	locked, err := c.repo.IsLocked(ctx, conversationID)
	if err != nil {
		return false, err
	}

	return !locked, nil
}

func (c *Coordinator) shouldDrainNow(ctx context.Context, conversationID string, queueSize int64) (bool, error) {
	if queueSize >= int64(c.cfg.MaxBatchSize) {
		slog.DebugContext(ctx, "batch size threshold reached",
			slog.String("conversation_id", conversationID),
			slog.Int64("queue_size", queueSize),
		)
		return true, nil
	}

	startedAt, ok, err := c.repo.WindowStart(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if ok && time.Since(startedAt) >= c.cfg.MaxWaitTime {
		slog.DebugContext(ctx, "max wait time reached",
			slog.String("conversation_id", conversationID),
			slog.Time("window_started_at", startedAt),
		)
		return true, nil
	}

	return false, nil
}

// scheduleDrain establishes the flow window if this arrival opened it,
// re-arms the sliding debounce timer, and refreshes the advisory timer
// marker. The window is intentionally never refreshed: it is the outer
// ceiling for the whole flow. Its TTL must exceed MaxWaitTime, or the
// marker expires the instant the flow becomes overdue and shouldDrainNow
// can never see an over-age window.
func (c *Coordinator) scheduleDrain(ctx context.Context, conversationID string) error {
	created, err := c.repo.StartWindow(ctx, conversationID, time.Now().UTC(), c.cfg.MaxWaitTime+c.cfg.ProcessingTimeout)
	if err != nil {
		return err
	}
	if created {
		slog.DebugContext(ctx, "flow window opened",
			slog.String("conversation_id", conversationID),
			slog.Duration("max_wait", c.cfg.MaxWaitTime),
		)
	}

	c.scheduler.Schedule(conversationID, c.cfg.MessageDelay, func() {
		c.fireTimer(conversationID)
	})

	return c.repo.MarkTimer(ctx, conversationID, c.cfg.MessageDelay+c.cfg.TimerMarkerMargin)
}

func (c *Coordinator) fireTimer(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProcessingTimeout)
	defer cancel()

	slog.DebugContext(ctx, "debounce timer fired",
		slog.String("conversation_id", conversationID),
	)

	if _, err := c.drain(ctx, conversationID, domain.DrainTriggerTimer); err != nil {
		slog.ErrorContext(ctx, "timer-driven drain failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}
}

// drain is the single path from ACCUMULATING back to IDLE, shared by the
// immediate and timer-driven triggers. The processing lock makes it
// mutually exclusive across instances; everything after acquisition runs to
// cleanup even when processing fails. The returned error covers store
// failures only.
func (c *Coordinator) drain(ctx context.Context, conversationID, trigger string) (*domain.BatchResult, error) {
	acquired, err := c.repo.AcquireLock(ctx, conversationID, c.cfg.ProcessingTimeout)
	if err != nil {
		return nil, err
	}
	if !acquired {
		slog.InfoContext(ctx, "drain already in progress, skipping",
			slog.String("conversation_id", conversationID),
			slog.String("trigger", trigger),
		)
		if c.metrics != nil {
			c.metrics.RecordLockContention(ctx, trigger)
		}
		return nil, nil
	}

	c.scheduler.Cancel(conversationID)

	drainCtx, span := tracing.StartDrainSpan(ctx, conversationID, trigger)
	defer span.End()

	start := time.Now()

	messages, err := c.repo.PendingMessages(drainCtx, conversationID)
	if err != nil {
		c.cleanup(drainCtx, conversationID)
		tracing.RecordDrainResult(span, 0, "", err)
		return nil, err
	}

	if len(messages) == 0 {
		// Spurious fire: another path already drained this flow.
		slog.DebugContext(drainCtx, "queue empty at drain, cleaning up",
			slog.String("conversation_id", conversationID),
			slog.String("trigger", trigger),
		)
		c.cleanup(drainCtx, conversationID)
		tracing.RecordDrainResult(span, 0, "", nil)
		return nil, nil
	}

	var waited time.Duration
	if startedAt, ok, err := c.repo.WindowStart(drainCtx, conversationID); err == nil && ok {
		waited = time.Since(startedAt)
	}

	batch := domain.NewBatch(conversationID, messages)

	outcome, procErr := c.processor.ProcessBatch(drainCtx, batch)

	var result *domain.BatchResult
	if procErr != nil {
		slog.ErrorContext(drainCtx, "batch processing failed",
			slog.String("conversation_id", conversationID),
			slog.Int("message_count", batch.MessageCount),
			slog.String("error", procErr.Error()),
		)
		result = domain.NewErrorResult(procErr, batch.MessageCount)
	} else {
		result = domain.NewCompletedResult(outcome, batch.MessageCount)
	}

	if err := c.repo.SaveResult(drainCtx, conversationID, result, c.cfg.ResponseTTL); err != nil {
		slog.WarnContext(drainCtx, "failed to save batch result",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}

	// Consume exactly the messages that were read; arrivals that landed
	// after the range read stay queued for the residue check below.
	if err := c.repo.TrimConsumed(drainCtx, conversationID, int64(batch.MessageCount)); err != nil {
		slog.WarnContext(drainCtx, "failed to trim consumed messages",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}

	c.cleanup(drainCtx, conversationID)

	duration := time.Since(start)
	tracing.RecordDrainResult(span, batch.MessageCount, result.Status, procErr)
	if c.metrics != nil {
		c.metrics.RecordDrain(drainCtx, trigger, result.Status, batch.MessageCount, duration)
	}
	if c.recorder != nil {
		record := &domain.DrainRecord{
			ConversationID: conversationID,
			MessageCount:   batch.MessageCount,
			Status:         result.Status,
			Trigger:        trigger,
			Waited:         waited,
			Duration:       duration,
			DrainedAt:      time.Now().UTC(),
		}
		if err := c.recorder.RecordDrain(drainCtx, record); err != nil {
			slog.WarnContext(drainCtx, "failed to record drain result",
				slog.String("conversation_id", conversationID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.InfoContext(drainCtx, "batch drained",
		slog.String("conversation_id", conversationID),
		slog.String("trigger", trigger),
		slog.String("status", result.Status),
		slog.Int("message_count", batch.MessageCount),
		slog.Duration("waited", waited),
		slog.Duration("duration", duration),
	)

	c.rearmResidue(drainCtx, conversationID)

	return result, nil
}

// cleanup removes the timer marker, window marker, and lock. It is the only
// exit back to IDLE and runs on every drain outcome.
func (c *Coordinator) cleanup(ctx context.Context, conversationID string) {
	if err := c.repo.ClearFlow(ctx, conversationID); err != nil {
		slog.WarnContext(ctx, "failed to clear flow markers",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}
}

// rearmResidue re-opens a fresh flow for messages that arrived between the
// drain's range read and its trim, instead of discarding them.
func (c *Coordinator) rearmResidue(ctx context.Context, conversationID string) {
	residual, err := c.repo.QueueLength(ctx, conversationID)
	if err != nil {
		slog.WarnContext(ctx, "failed to measure residual queue",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		return
	}
	if residual == 0 {
		return
	}

	slog.InfoContext(ctx, "re-arming flow for messages that arrived during drain",
		slog.String("conversation_id", conversationID),
		slog.Int64("residual", residual),
	)

	if err := c.scheduleDrain(ctx, conversationID); err != nil {
		slog.WarnContext(ctx, "failed to re-arm residual flow",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}
}
