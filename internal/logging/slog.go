package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyMessageID  = "message_id"
	KeyThreadID   = "thread_id"
	KeySubject    = "subject"
	KeyAttachment = "attachment"
	KeySize       = "size"
	KeyMimeType   = "mime_type"
	KeyPath       = "path"
	KeyState      = "state"
	KeyDuration   = "duration"
	KeyError      = "error"
	KeyDryRun     = "dry_run"
	KeyPage       = "page"
	KeyUserHash   = "user_hash"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// maxSubjectLength bounds subjects written to logs.
const maxSubjectLength = 80

// New returns a logger writing to w at the given level ("debug", "info",
// "warn" or "error") in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q, must be one of: text, json", format)
	}
}

// ParseLevel converts a level name to a slog.Level. An empty name means info.
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", level)
	}
	return lvl, nil
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithMessage returns a logger annotated with a Gmail message and thread id.
func WithMessage(logger *slog.Logger, messageID, threadID string) *slog.Logger {
	return logger.With(slog.String(KeyMessageID, messageID), slog.String(KeyThreadID, threadID))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// Subject returns a slog attribute for a message subject, cut to a
// readable length.
func Subject(subject string) slog.Attr {
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		runes := []rune(subject)
		subject = string(runes[:maxSubjectLength]) + "…"
	}
	return slog.String(KeySubject, subject)
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
// This allows correlation of log entries without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user email.
//
// Usage:
//
//	logger.Info("authenticated", logging.UserHash(profile.EmailAddress))
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}
