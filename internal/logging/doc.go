// Package logging provides structured logging utilities for attachextract.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger from configuration:
//
//	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
//
// Annotate a logger for one message:
//
//	logger := logging.WithMessage(base, msg.ID, msg.ThreadID)
//	logger.Info("attachment extracted",
//	    slog.String(logging.KeyPath, saved.Path),
//	    logging.Subject(subject))
//
// # Security Considerations
//
// The authenticated account is only ever logged through UserHash.
package logging
