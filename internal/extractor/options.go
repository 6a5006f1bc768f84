package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/teemow/attachextract/internal/filter"
)

// Bookkeeping label suffixes. The original message gets "<prefix> [pre]",
// the rewritten copy "<prefix> [post]".
const (
	PreLabelSuffix  = " [pre]"
	PostLabelSuffix = " [post]"
)

// Defaults for Options.
const (
	DefaultLabelsPrefix = "Cleanup"
	DefaultOutputDir    = "Gmail Extracted Attachments"
)

var lowerCaseOperator = regexp.MustCompile(`(^|\s)(or|and|around)(\s|$)`)

// Options configure one extraction run.
type Options struct {
	// Query is a Gmail search query selecting the messages to process.
	Query string

	// OutputDir is created by the run and must not exist beforehand.
	OutputDir string

	// LabelsPrefix names the bookkeeping labels. Both labels must not exist
	// beforehand unless DryRun is set.
	LabelsPrefix string

	// Filter selects the attachments to extract. Nil extracts everything.
	Filter *filter.Filter

	// DryRun extracts and validates but never modifies the mailbox.
	DryRun bool

	// FailLate records per-message failures and carries on instead of
	// aborting. Every failure is still returned at the end of the run.
	FailLate bool

	// InterMessageWait is a fixed pause between two messages.
	InterMessageWait time.Duration
}

// PreLabel returns the name of the label added to original messages.
func (o Options) PreLabel() string {
	return o.LabelsPrefix + PreLabelSuffix
}

// PostLabel returns the name of the label carried by rewritten copies.
func (o Options) PostLabel() string {
	return o.LabelsPrefix + PostLabelSuffix
}

// ValidateQuery rejects empty queries and lower-case boolean operators,
// which Gmail silently treats as search words.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query must not be empty", ErrConfiguration)
	}
	if m := lowerCaseOperator.FindStringSubmatch(query); m != nil {
		return fmt.Errorf("%w: query operator %q must be upper case (%s)", ErrConfiguration, m[2], strings.ToUpper(m[2]))
	}
	return nil
}

func (o Options) validate() error {
	if err := ValidateQuery(o.Query); err != nil {
		return err
	}
	if strings.TrimSpace(o.OutputDir) == "" {
		return fmt.Errorf("%w: output directory must not be empty", ErrConfiguration)
	}
	if strings.TrimSpace(o.LabelsPrefix) == "" {
		return fmt.Errorf("%w: labels prefix must not be empty", ErrConfiguration)
	}
	if o.InterMessageWait < 0 {
		return fmt.Errorf("%w: inter-message wait must not be negative", ErrConfiguration)
	}
	return nil
}
