// Package instrumentation provides OpenTelemetry instrumentation for
// attachment extraction runs.
//
// # Metrics
//
// Pipeline metrics:
//   - attachextract_messages_processed_total: Counter of messages by result (extracted, skipped, failed)
//   - attachextract_message_duration_seconds: Histogram of per-message processing time
//   - attachextract_attachments_total: Counter of attachment candidates by result and MIME family
//   - attachextract_attachment_bytes_total: Counter of bytes written to disk
//
// Gmail API metrics:
//   - attachextract_gmail_api_calls_total: Counter of calls by operation and status
//   - attachextract_gmail_api_duration_seconds: Histogram of call durations by operation
//
// # Tracing
//
// Spans are created for:
//   - a whole run (extractor.run)
//   - each message (extractor.message)
//   - Gmail API calls (gmail.<operation>)
//
// # Audit
//
// AuditLogger writes one record per mailbox mutation: label creation,
// message insertion and label assignment.
//
// # Configuration
//
// Instrumentation is disabled unless INSTRUMENTATION_ENABLED=true:
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces and metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: attachextract)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_SUBJECTS
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordGmailAPICall(ctx, instrumentation.OperationInsert, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
