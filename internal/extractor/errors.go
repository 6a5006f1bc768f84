package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Returned errors wrap one of these and can be tested with
// errors.Is.
var (
	// ErrConfiguration is returned for invalid options before the mailbox is touched.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrPrecondition is returned when a run cannot start without side
	// effects on earlier output: the output directory or the bookkeeping
	// labels already exist.
	ErrPrecondition = errors.New("precondition failed")

	// ErrStructure is returned for a message whose content is not multipart
	// or cannot be parsed.
	ErrStructure = errors.New("unexpected message structure")

	// ErrInconsistent is returned when the saved attachments do not match
	// the sizes announced by the message metadata.
	ErrInconsistent = errors.New("extracted attachments do not match message metadata")
)

// MessageError is the failure of a single message.
type MessageError struct {
	MessageID string
	Subject   string
	Err       error
}

func (e *MessageError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("message %s (%q): %v", e.MessageID, e.Subject, e.Err)
	}
	return fmt.Sprintf("message %s: %v", e.MessageID, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

// RunError lists every message that failed during a fail-late run.
type RunError struct {
	Failures []*MessageError
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s) failed", len(e.Failures))
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  #%d %v", i+1, f)
	}
	return b.String()
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
