package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus     = "status"
	attrOperation  = "operation"
	attrResult     = "result"
	attrMimeFamily = "mime_family"
	attrTool       = "tool"
)

// Metrics records extraction metrics. The zero value is a no-op recorder,
// and so is a nil *Metrics.
type Metrics struct {
	messagesProcessedTotal metric.Int64Counter
	messageDuration        metric.Float64Histogram

	attachmentsTotal     metric.Int64Counter
	attachmentBytesTotal metric.Int64Counter

	gmailAPICallsTotal  metric.Int64Counter
	gmailAPICallLatency metric.Float64Histogram

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.messagesProcessedTotal, err = meter.Int64Counter(
		"attachextract_messages_processed_total",
		metric.WithDescription("Messages processed by the extraction pipeline"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_messages_processed_total counter: %w", err)
	}

	m.messageDuration, err = meter.Float64Histogram(
		"attachextract_message_duration_seconds",
		metric.WithDescription("Time spent on one message in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_message_duration_seconds histogram: %w", err)
	}

	m.attachmentsTotal, err = meter.Int64Counter(
		"attachextract_attachments_total",
		metric.WithDescription("Attachment candidates by outcome"),
		metric.WithUnit("{attachment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_attachments_total counter: %w", err)
	}

	m.attachmentBytesTotal, err = meter.Int64Counter(
		"attachextract_attachment_bytes_total",
		metric.WithDescription("Bytes of extracted attachments written to disk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_attachment_bytes_total counter: %w", err)
	}

	m.gmailAPICallsTotal, err = meter.Int64Counter(
		"attachextract_gmail_api_calls_total",
		metric.WithDescription("Gmail API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_gmail_api_calls_total counter: %w", err)
	}

	m.gmailAPICallLatency, err = meter.Float64Histogram(
		"attachextract_gmail_api_duration_seconds",
		metric.WithDescription("Gmail API call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_gmail_api_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"attachextract_tool_invocations_total",
		metric.WithDescription("MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"attachextract_tool_duration_seconds",
		metric.WithDescription("MCP tool invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 60.0, 300.0, 900.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachextract_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordMessage records the outcome of one message.
// Result should be one of: ResultExtracted, ResultSkipped, ResultFailed.
func (m *Metrics) RecordMessage(ctx context.Context, result string, duration time.Duration) {
	if m == nil || m.messagesProcessedTotal == nil || m.messageDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.messagesProcessedTotal.Add(ctx, 1, attrs)
	m.messageDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAttachment records one attachment candidate.
// Result should be ResultExtracted or ResultFiltered; bytes are only
// counted for extracted attachments.
func (m *Metrics) RecordAttachment(ctx context.Context, result, mimeType string, size int64) {
	if m == nil || m.attachmentsTotal == nil || m.attachmentBytesTotal == nil {
		return
	}

	m.attachmentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
		attribute.String(attrMimeFamily, MimeFamily(mimeType)),
	))
	if result == ResultExtracted && size > 0 {
		m.attachmentBytesTotal.Add(ctx, size)
	}
}

// RecordGmailAPICall records a Gmail API call with operation, status and duration.
//
// Parameters:
//   - operation: one of the Operation* constants
//   - status: StatusSuccess or StatusError
//   - duration: time taken for the call
func (m *Metrics) RecordGmailAPICall(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.gmailAPICallsTotal == nil || m.gmailAPICallLatency == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.gmailAPICallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gmailAPICallLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs[:1]...))
}

// RecordToolInvocation records one MCP tool call with its status and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs[:1]...))
}
