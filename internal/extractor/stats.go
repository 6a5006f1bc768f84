package extractor

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Multiset counts occurrences of strings.
type Multiset map[string]int

// Add counts each item once.
func (m Multiset) Add(items ...string) {
	for _, item := range items {
		m[item]++
	}
}

// Len returns the total number of occurrences.
func (m Multiset) Len() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// String lists the items sorted, with a count for repeated ones:
// "application/pdf x 2, image/png".
func (m Multiset) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		if m[k] > 1 {
			parts[i] = fmt.Sprintf("%s x %d", k, m[k])
		} else {
			parts[i] = k
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Stats are the counters of one run.
type Stats struct {
	Query  string
	DryRun bool

	// Processed counts every message looked at, Extracted the messages at
	// least one attachment was taken from.
	Processed int
	Extracted int

	Attachments int
	Bytes       int64

	ExtractedTypes Multiset
	FilteredTypes  Multiset

	Failures []*MessageError
}

func newStats(query string, dryRun bool) *Stats {
	return &Stats{
		Query:          query,
		DryRun:         dryRun,
		ExtractedTypes: Multiset{},
		FilteredTypes:  Multiset{},
	}
}

// Summary renders the end-of-run report.
func (s *Stats) Summary() string {
	var b strings.Builder
	b.WriteString("=== SUMMARY ===\n")
	fmt.Fprintf(&b, "Processed %d email(s)\n", s.Processed)
	fmt.Fprintf(&b, "Extracted attachments from %d email(s)\n", s.Extracted)
	fmt.Fprintf(&b, "Extracted %d attachment(s)\n", s.Attachments)
	fmt.Fprintf(&b, "Total extracted attachments size: %s\n", humanize.Bytes(uint64(max(s.Bytes, 0))))
	fmt.Fprintf(&b, "Extracted attachments types: %s\n", s.ExtractedTypes)
	if len(s.FilteredTypes) > 0 {
		fmt.Fprintf(&b, "NOT extracted (filtered) attachments types: %s\n", s.FilteredTypes)
	}
	if s.DryRun {
		b.WriteString("GMAIL DATA NOT MODIFIED\n")
	}
	if len(s.Failures) > 0 {
		for i, f := range s.Failures {
			fmt.Fprintf(&b, "\n== ERROR #%d\n%v\n", i+1, f)
		}
		fmt.Fprintf(&b, "\n%d error(s) in total.\n", len(s.Failures))
	}
	return b.String()
}

// LogAttrs returns the counters as log attributes.
func (s *Stats) LogAttrs() []any {
	return []any{
		slog.Int("processed", s.Processed),
		slog.Int("extracted_messages", s.Extracted),
		slog.Int("attachments", s.Attachments),
		slog.String("bytes", humanize.Bytes(uint64(max(s.Bytes, 0)))),
		slog.Int("filtered", s.FilteredTypes.Len()),
		slog.Int("failures", len(s.Failures)),
		slog.Bool("dry_run", s.DryRun),
	}
}
