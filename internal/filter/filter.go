package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfig is returned by New when the filter configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid attachment filter configuration")

// Config captures the user-facing filter settings. Sizes are strings so that
// values like "500k" or "2MB" can be passed straight from flags or YAML.
type Config struct {
	Filename string `yaml:"filename"`
	MimeType string `yaml:"mime_type"`
	MinSize  string `yaml:"min_size"`
	MaxSize  string `yaml:"max_size"`
}

// Filter decides whether an attachment part qualifies for extraction.
type Filter struct {
	filename *regexp.Regexp
	mimeType *regexp.Regexp
	minSize  int64
	maxSize  int64
}

// New compiles cfg into a Filter. An empty filename pattern matches every
// name, an empty MIME type pattern matches every type. Sizes of zero are
// unbounded on their side.
func New(cfg Config) (*Filter, error) {
	filenamePattern := cfg.Filename
	if filenamePattern == "" {
		filenamePattern = ".*"
	}
	filename, err := regexp.Compile(`(?s)^(?:` + filenamePattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: compile filename pattern %q: %v", ErrInvalidConfig, cfg.Filename, err)
	}

	mimePattern := cfg.MimeType
	if mimePattern == "" {
		mimePattern = ".*"
	}
	mimeType, err := regexp.Compile(`(?s)^(?:` + mimePattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w: compile MIME type pattern %q: %v", ErrInvalidConfig, cfg.MimeType, err)
	}

	minSize, err := ParseSize(cfg.MinSize)
	if err != nil {
		return nil, fmt.Errorf("%w: min size: %v", ErrInvalidConfig, err)
	}
	maxSize, err := ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: max size: %v", ErrInvalidConfig, err)
	}
	if minSize > 0 && maxSize > 0 && minSize > maxSize {
		return nil, fmt.Errorf("%w: min size %d is greater than max size %d", ErrInvalidConfig, minSize, maxSize)
	}

	return &Filter{
		filename: filename,
		mimeType: mimeType,
		minSize:  minSize,
		maxSize:  maxSize,
	}, nil
}

// MatchAll returns a filter that accepts every attachment candidate.
func MatchAll() *Filter {
	f, _ := New(Config{})
	return f
}

// Satisfies reports whether a part with the given filename, MIME type and
// size should be extracted. Parts without a filename, without a MIME type,
// of a multipart type or with no size never qualify.
func (f *Filter) Satisfies(filename, mimeType string, size int64) bool {
	if filename == "" || mimeType == "" || size <= 0 {
		return false
	}
	if strings.Contains(strings.ToLower(mimeType), "multipart") {
		return false
	}
	if !f.filename.MatchString(filename) {
		return false
	}
	if !f.mimeType.MatchString(mimeType) {
		return false
	}
	if f.minSize > 0 && size < f.minSize {
		return false
	}
	if f.maxSize > 0 && size > f.maxSize {
		return false
	}
	return true
}

// MinSize returns the inclusive lower size bound, 0 when unbounded.
func (f *Filter) MinSize() int64 { return f.minSize }

// MaxSize returns the inclusive upper size bound, 0 when unbounded.
func (f *Filter) MaxSize() int64 { return f.maxSize }

// String describes the filter for logs.
func (f *Filter) String() string {
	return fmt.Sprintf("filename=%s mime_type=%s min_size=%s max_size=%s",
		f.filename, f.mimeType, FormatSize(f.minSize), FormatSize(f.maxSize))
}
