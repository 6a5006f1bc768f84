package pathsafe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind selects how a name is truncated: files keep their extension.
type Kind int

const (
	File Kind = iota
	Dir
)

// Length limits, counted in runes.
const (
	MaxNameLength = 50
	MaxExtLength  = 10
	MaxDirLength  = 50
)

// Strategy turns an untrusted name into a candidate file or directory name.
// Strategies are pure; whether the filesystem accepts the result is decided
// by the Resolver.
type Strategy func(name string, kind Kind) string

// DefaultStrategies are tried in order until the filesystem accepts a name.
var DefaultStrategies = []Strategy{Verbatim, Conservative, ASCIIOnly}

// Verbatim keeps the name as is, except that path separators and NUL bytes
// are replaced with underscores so the name cannot leave its directory.
func Verbatim(name string, _ Kind) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

// Conservative keeps Unicode letters, digits, space, underscore and dot.
func Conservative(name string, kind Kind) string {
	return restrict(norm.NFC.String(name), kind, isConservative)
}

// ASCIIOnly folds diacritics and keeps only ASCII letters, digits, space,
// underscore and dot. Applying it to its own output is a no-op.
func ASCIIOnly(name string, kind Kind) string {
	return restrict(foldDiacritics(name), kind, isPortable)
}

func isConservative(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '.'
}

func isPortable(r rune) bool {
	return r < unicode.MaxASCII && isConservative(r)
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// restrict applies one restriction pass until the name stops changing.
// Trimming a trailing dot can expose a new extension that needs its own
// truncation, so a single pass is not always stable. Every pass that
// changes a restricted name makes it shorter, so the loop ends.
func restrict(name string, kind Kind, keep func(rune) bool) string {
	out := restrictOnce(name, kind, keep)
	for {
		next := restrictOnce(out, kind, keep)
		if next == out {
			return out
		}
		out = next
	}
}

func restrictOnce(name string, kind Kind, keep func(rune) bool) string {
	var out string
	if kind == File {
		base, ext := splitExt(name)
		out = truncate(replaceRuns(base, keep), MaxNameLength) + truncate(replaceRuns(ext, keep), MaxExtLength)
	} else {
		out = truncate(replaceRuns(name, keep), MaxDirLength)
	}
	out = strings.TrimRightFunc(out, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	if out == "" {
		return "_"
	}
	return out
}

// replaceRuns collapses every run of rejected runes into one underscore.
func replaceRuns(s string, keep func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// splitExt splits at the last dot. A leading dot is part of the base name.
func splitExt(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
