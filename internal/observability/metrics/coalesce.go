package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	coalesceMeterName = "coalesce.service"
)

type CoalesceMetrics struct {
	messagesReceived metric.Int64Counter
	drains           metric.Int64Counter
	lockContention   metric.Int64Counter
	batchSize        metric.Int64Histogram
	drainDuration    metric.Float64Histogram
}

func NewCoalesceMetrics() (*CoalesceMetrics, error) {
	meter := otel.Meter(coalesceMeterName)

	messagesReceived, err := meter.Int64Counter(
		"coalesce_messages_received_total",
		metric.WithDescription("Total number of messages accepted into conversation queues"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	drains, err := meter.Int64Counter(
		"coalesce_drains_total",
		metric.WithDescription("Total number of drain executions"),
		metric.WithUnit("{drain}"),
	)
	if err != nil {
		return nil, err
	}

	lockContention, err := meter.Int64Counter(
		"coalesce_lock_contention_total",
		metric.WithDescription("Total number of drains skipped because another drain held the lock"),
		metric.WithUnit("{skip}"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram(
		"coalesce_batch_size",
		metric.WithDescription("Number of messages per drained batch"),
		metric.WithUnit("{message}"),
		metric.WithExplicitBucketBoundaries(
			1, 2, 3, 5, 8, 13, 21, 34, 55,
		),
	)
	if err != nil {
		return nil, err
	}

	drainDuration, err := meter.Float64Histogram(
		"coalesce_drain_duration_seconds",
		metric.WithDescription("Drain execution duration including downstream processing"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
		),
	)
	if err != nil {
		return nil, err
	}

	return &CoalesceMetrics{
		messagesReceived: messagesReceived,
		drains:           drains,
		lockContention:   lockContention,
		batchSize:        batchSize,
		drainDuration:    drainDuration,
	}, nil
}

func (m *CoalesceMetrics) RecordMessageReceived(ctx context.Context, newFlow bool) {
	m.messagesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("new_flow", newFlow),
	))
}

func (m *CoalesceMetrics) RecordDrain(ctx context.Context, trigger, status string, size int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	)
	m.drains.Add(ctx, 1, attrs)
	m.batchSize.Record(ctx, int64(size), attrs)
	m.drainDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *CoalesceMetrics) RecordLockContention(ctx context.Context, trigger string) {
	m.lockContention.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
	))
}
