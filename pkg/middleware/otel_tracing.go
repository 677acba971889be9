package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/pagetemp/internal/telemetry/attrs"
	"github.com/hyp3rd/pagetemp/pkg/backend"
)

// OTelTracingSink wraps a backend.Sink with OpenTelemetry spans.
type OTelTracingSink struct {
	next   backend.Sink
	tracer trace.Tracer
	// static attributes applied to all spans
	commonAttrs []attribute.KeyValue
}

// OTelTracingOption allows configuring the tracing middleware.
type OTelTracingOption func(*OTelTracingSink)

// WithCommonAttributes sets attributes applied to all spans.
func WithCommonAttributes(attributes ...attribute.KeyValue) OTelTracingOption {
	return func(m *OTelTracingSink) { m.commonAttrs = append(m.commonAttrs, attributes...) }
}

// NewOTelTracingSink creates a tracing sink middleware.
func NewOTelTracingSink(next backend.Sink, tracer trace.Tracer, opts ...OTelTracingOption) backend.Sink {
	mw := &OTelTracingSink{next: next, tracer: tracer}
	for _, o := range opts {
		o(mw)
	}

	return mw
}

// Append implements Sink.Append with tracing.
func (mw OTelTracingSink) Append(ctx context.Context, series string, records ...backend.Record) error {
	ctx, span := mw.startSpan(ctx, "pagetemp.sink.Append",
		attribute.String(attrs.AttrComparison, series),
		attribute.Int(attrs.AttrRecords, len(records)))
	defer span.End()

	err := mw.next.Append(ctx, series, records...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// Close implements Sink.Close with a span.
func (mw OTelTracingSink) Close() error {
	_, span := mw.startSpan(context.Background(), "pagetemp.sink.Close")
	defer span.End()

	return mw.next.Close()
}

// startSpan starts a span with common and provided attributes.
func (mw OTelTracingSink) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := mw.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	if len(mw.commonAttrs) > 0 {
		span.SetAttributes(mw.commonAttrs...)
	}

	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}

	return ctx, span
}
