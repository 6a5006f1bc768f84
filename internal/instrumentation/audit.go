package instrumentation

import (
	"context"
	"log/slog"
)

// Mailbox mutations recorded by the audit log.
const (
	MutationCreateLabel   = "create_label"
	MutationInsertMessage = "insert_message"
	MutationAddLabel      = "add_label"
)

// MutationEvent describes one change made to the mailbox.
//
// # Privacy Considerations
//
// Subject is message content. It is only written when the logger is
// configured with IncludeSubjects.
type MutationEvent struct {
	Mutation  string
	MessageID string
	ThreadID  string
	LabelID   string
	LabelName string
	Subject   string
	Err       error

	// Tracing context
	TraceID string
}

// WithSpanContext copies the trace id of the current span into the event.
func (e MutationEvent) WithSpanContext(ctx context.Context) MutationEvent {
	e.TraceID = GetTraceID(ctx)
	return e
}

func (e MutationEvent) attrs(includeSubjects bool) []any {
	args := []any{slog.String("mutation", e.Mutation)}
	if e.MessageID != "" {
		args = append(args, slog.String("message_id", e.MessageID))
	}
	if e.ThreadID != "" {
		args = append(args, slog.String("thread_id", e.ThreadID))
	}
	if e.LabelID != "" {
		args = append(args, slog.String("label_id", e.LabelID))
	}
	if e.LabelName != "" {
		args = append(args, slog.String("label", e.LabelName))
	}
	if includeSubjects && e.Subject != "" {
		args = append(args, slog.String("subject", e.Subject))
	}
	if e.TraceID != "" {
		args = append(args, slog.String("trace_id", e.TraceID))
	}
	if e.Err != nil {
		args = append(args, slog.String("error", e.Err.Error()))
	}
	return args
}

// AuditLogger writes one structured record per mailbox mutation.
// A nil *AuditLogger discards everything.
type AuditLogger struct {
	logger          *slog.Logger
	enabled         bool
	includeSubjects bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:          logger,
		enabled:         config.Enabled,
		includeSubjects: config.IncludeSubjects,
	}
}

// LogMutation logs a mailbox mutation. Failed mutations are logged at warn level.
func (al *AuditLogger) LogMutation(e MutationEvent) {
	if al == nil || !al.enabled {
		return
	}

	args := e.attrs(al.includeSubjects)
	if e.Err != nil {
		al.logger.Warn("mailbox_mutation_failed", args...)
		return
	}
	al.logger.Info("mailbox_mutation", args...)
}
