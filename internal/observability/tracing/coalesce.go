package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const coalesceTracerName = "github.com/KasumiMercury/primind-message-coalescing/internal/service/coalesce"

func CoalesceTracer() trace.Tracer {
	return otel.Tracer(coalesceTracerName)
}

func StartDrainSpan(ctx context.Context, conversationID, trigger string) (context.Context, trace.Span) {
	return CoalesceTracer().Start(ctx, "coalesce.drain",
		trace.WithAttributes(
			attribute.String("conversation_id", conversationID),
			attribute.String("trigger", trigger),
		),
	)
}

func RecordDrainResult(span trace.Span, messageCount int, status string, err error) {
	span.SetAttributes(
		attribute.Int("batch.message_count", messageCount),
		attribute.String("batch.status", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func StartAssistantCallSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	return CoalesceTracer().Start(ctx, "coalesce.assistant_call",
		trace.WithAttributes(
			attribute.String("url", url),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
