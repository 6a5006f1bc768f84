package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the attachextract package.
const TracerName = "github.com/teemow/attachextract"

// Span attribute keys.
const (
	// SpanAttrOperation is the Gmail API operation attribute.
	SpanAttrOperation = "gmail.operation"

	// SpanAttrMessageID is the Gmail message id attribute.
	SpanAttrMessageID = "gmail.message_id"

	// SpanAttrQuery is the search query of a run.
	SpanAttrQuery = "extract.query"

	// SpanAttrDryRun marks runs that do not modify the mailbox.
	SpanAttrDryRun = "extract.dry_run"

	// SpanAttrState is the final processing state of a message.
	SpanAttrState = "extract.state"

	// SpanAttrAttachments is the number of attachments extracted from a message.
	SpanAttrAttachments = "extract.attachments"
)

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartRunSpan starts the root span of an extraction run.
func StartRunSpan(ctx context.Context, query string, dryRun bool) (context.Context, trace.Span) {
	return StartSpan(ctx, "extractor.run",
		attribute.String(SpanAttrQuery, query),
		attribute.Bool(SpanAttrDryRun, dryRun),
	)
}

// StartMessageSpan starts a span covering the processing of one message.
func StartMessageSpan(ctx context.Context, messageID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "extractor.message", attribute.String(SpanAttrMessageID, messageID))
}

// StartGmailSpan starts a client span for a Gmail API call.
func StartGmailSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrOperation, operation))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "gmail."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
