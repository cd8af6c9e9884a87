//go:build gcloud

package drainrecorder

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
)

type bigQueryRecord struct {
	RecordedAt      time.Time `bigquery:"recorded_at"`
	DrainedAt       time.Time `bigquery:"drained_at"`
	ConversationID  string    `bigquery:"conversation_id"`
	Trigger         string    `bigquery:"trigger"`
	Status          string    `bigquery:"status"`
	MessageCount    int64     `bigquery:"message_count"`
	WaitedSeconds   float64   `bigquery:"waited_seconds"`
	DurationSeconds float64   `bigquery:"duration_seconds"`
}

type bigQueryRecorder struct {
	client   *bigquery.Client
	inserter *bigquery.Inserter
	dataset  string
	table    string
}

func NewRecorder(ctx context.Context, cfg *Config) (domain.DrainResultRecorder, error) {
	if cfg.Disabled {
		slog.InfoContext(ctx, "drain result recording disabled")
		return NewNoopRecorder(), nil
	}

	if cfg.BigQueryProjectID == "" {
		slog.WarnContext(ctx, "BigQuery project ID not configured, drain result recording disabled")
		return NewNoopRecorder(), nil
	}

	client, err := bigquery.NewClient(ctx, cfg.BigQueryProjectID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create BigQuery client, drain result recording disabled",
			slog.String("error", err.Error()),
			slog.String("project_id", cfg.BigQueryProjectID),
		)
		return NewNoopRecorder(), nil
	}

	table := client.Dataset(cfg.BigQueryDataset).Table(cfg.BigQueryTable)
	inserter := table.Inserter()

	slog.InfoContext(ctx, "drain result recorder initialized",
		slog.String("type", "bigquery"),
		slog.String("project_id", cfg.BigQueryProjectID),
		slog.String("dataset", cfg.BigQueryDataset),
		slog.String("table", cfg.BigQueryTable),
	)

	return &bigQueryRecorder{
		client:   client,
		inserter: inserter,
		dataset:  cfg.BigQueryDataset,
		table:    cfg.BigQueryTable,
	}, nil
}

func (r *bigQueryRecorder) RecordDrain(ctx context.Context, record *domain.DrainRecord) error {
	if record == nil {
		return nil
	}

	bqRecord := &bigQueryRecord{
		RecordedAt:      time.Now(),
		DrainedAt:       record.DrainedAt,
		ConversationID:  record.ConversationID,
		Trigger:         record.Trigger,
		Status:          record.Status,
		MessageCount:    int64(record.MessageCount),
		WaitedSeconds:   record.Waited.Seconds(),
		DurationSeconds: record.Duration.Seconds(),
	}

	if err := r.inserter.Put(ctx, []*bigQueryRecord{bqRecord}); err != nil {
		slog.WarnContext(ctx, "failed to insert drain result to BigQuery",
			slog.String("error", err.Error()),
			slog.String("conversation_id", record.ConversationID),
		)
	}

	return nil
}

func (r *bigQueryRecorder) Flush(ctx context.Context) error {
	return nil
}

func (r *bigQueryRecorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
