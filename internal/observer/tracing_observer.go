package observer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smilemakc/wfkernel/internal/infrastructure/tracing"
)

// TracingObserver records case/task lifecycle events as span events on the
// active OTel span (§6: optional observability surface, never required on
// the hot path — if tracing is disabled tracing.AddSpanEvent is a no-op).
type TracingObserver struct{}

// NewTracingObserver returns an Observer that mirrors lifecycle events onto
// the span active in the event's context.
func NewTracingObserver() *TracingObserver { return &TracingObserver{} }

// Name identifies this observer for Manager registration.
func (o *TracingObserver) Name() string { return "tracing" }

// Filter notifies on every event type.
func (o *TracingObserver) Filter() EventFilter { return nil }

// OnEvent records the event as a span event with case/task attributes.
func (o *TracingObserver) OnEvent(ctx context.Context, event Event) error {
	attrs := []attribute.KeyValue{
		attribute.String("case_id", event.CaseID),
		attribute.String("spec_id", event.SpecID),
		attribute.String("state", event.State),
	}
	if event.TaskID != nil {
		attrs = append(attrs, attribute.String("task_id", *event.TaskID))
	}
	if event.PatternID != nil {
		attrs = append(attrs, attribute.Int("pattern_id", *event.PatternID))
	}
	if event.Ticks != nil {
		attrs = append(attrs, attribute.Int64("ticks", int64(*event.Ticks)))
	}
	if event.Tier != nil {
		attrs = append(attrs, attribute.String("tier", *event.Tier))
	}

	tracing.AddSpanEvent(ctx, string(event.Type), trace.WithAttributes(attrs...))

	if event.Err != nil {
		tracing.RecordError(ctx, event.Err)
		span := tracing.SpanFromContext(ctx)
		span.SetStatus(codes.Error, event.Err.Error())
	}
	return nil
}
