package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize parses a byte size such as "1500", "500k", "1.5M" or "2GB".
// Suffixes are decimal: k=1e3, M=1e6, G=1e9. An empty string is 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative size %q", s)
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %q is too large", s)
	}
	return int64(n), nil
}

// FormatSize renders a size bound for humans, "unbounded" for 0.
func FormatSize(n int64) string {
	if n <= 0 {
		return "unbounded"
	}
	return humanize.Bytes(uint64(n))
}
