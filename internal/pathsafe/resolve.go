package pathsafe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrExhausted means no acceptable or unique path could be produced. It is
// not recoverable: either the strategies are broken or the clock or the
// filesystem misbehaves.
var ErrExhausted = errors.New("no acceptable path left")

// TimestampLayout prefixes attachment directory names.
const TimestampLayout = "2006.01.02 15_04_05"

const (
	maxSiblingAttempts = 10
	maxFileAttempts    = 100
)

// Counter is the run-scoped last-resort disambiguator. It is owned by the
// caller that drives a run and is not safe for concurrent use.
type Counter struct {
	n int
}

// Next returns the next value, starting at 1.
func (c *Counter) Next() int {
	c.n++
	return c.n
}

// Target is a resolved file location inside an attachments directory.
type Target struct {
	Dir  string
	Name string
}

// Path returns the joined path of the target.
func (t Target) Path() string {
	return filepath.Join(t.Dir, t.Name)
}

// Resolver turns untrusted names into paths inside a base directory.
type Resolver struct {
	strategies []Strategy
	accepts    func(path string) bool
	counter    *Counter
	issued     map[string]struct{}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the sanitization strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		r.strategies = strategies
	}
}

// WithAcceptor replaces the filesystem acceptance check.
func WithAcceptor(accepts func(path string) bool) Option {
	return func(r *Resolver) {
		r.accepts = accepts
	}
}

// NewResolver creates a resolver using counter for last-resort names.
func NewResolver(counter *Counter, opts ...Option) *Resolver {
	if counter == nil {
		counter = &Counter{}
	}
	r := &Resolver{
		strategies: DefaultStrategies,
		accepts:    filesystemAccepts,
		counter:    counter,
		issued:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// filesystemAccepts checks the path without creating anything. Names the
// filesystem cannot represent fail with errors other than not-exist.
func filesystemAccepts(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || errors.Is(err, fs.ErrNotExist)
}

// Resolve returns the first strategy result that stays inside base and that
// the filesystem accepts.
func (r *Resolver) Resolve(base, name string, kind Kind) (string, error) {
	tried := make([]string, 0, len(r.strategies))
	for _, strategy := range r.strategies {
		candidate := strategy(name, kind)
		tried = append(tried, candidate)
		if r.acceptable(base, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q rejected in %s (tried %q)", ErrExhausted, name, base, tried)
}

func (r *Resolver) acceptable(base, candidate string) bool {
	if candidate == "" || candidate == "." || candidate == ".." {
		return false
	}
	if strings.ContainsAny(candidate, `/\`) || strings.ContainsRune(candidate, os.PathSeparator) {
		return false
	}
	joined := filepath.Join(base, candidate)
	if filepath.Dir(joined) != filepath.Clean(base) {
		return false
	}
	return r.accepts(joined)
}

// UniqueDir creates a new directory for a message received at the given time
// and returns its path. The name is the timestamp followed by the subject.
// Siblings get " 2" to " 9" appended, then the bare timestamp is tried, then
// the timestamp with the run counter.
func (r *Resolver) UniqueDir(base string, receivedAt time.Time, subject string) (string, error) {
	stamp := receivedAt.Format(TimestampLayout)
	name, err := r.Resolve(base, strings.TrimSpace(stamp+" "+subject), Dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var lastErr error
	mkdir := func(candidate string) (string, bool) {
		dir := filepath.Join(base, candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, true
		}
		if !errors.Is(err, fs.ErrExist) {
			lastErr = err
		}
		return "", false
	}

	if dir, ok := mkdir(name); ok {
		return dir, nil
	}
	for i := 2; i < maxSiblingAttempts; i++ {
		if dir, ok := mkdir(name + " " + strconv.Itoa(i)); ok {
			return dir, nil
		}
	}
	if dir, ok := mkdir(stamp); ok {
		return dir, nil
	}
	if dir, ok := mkdir(stamp + " " + strconv.Itoa(r.counter.Next())); ok {
		return dir, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: directory for %q in %s: %v", ErrExhausted, name, base, lastErr)
	}
	return "", fmt.Errorf("%w: every directory name for %q in %s exists", ErrExhausted, name, base)
}

// UniqueFile resolves a file name inside dir that neither exists nor was
// handed out earlier in this run.
func (r *Resolver) UniqueFile(dir, name string) (Target, error) {
	resolved, err := r.Resolve(dir, name, File)
	if err != nil {
		return Target{}, err
	}
	stem, ext := splitExt(resolved)
	for i := 1; i < maxFileAttempts; i++ {
		candidate := resolved
		if i > 1 {
			candidate = stem + " " + strconv.Itoa(i) + ext
		}
		if r.claim(dir, candidate) {
			return Target{Dir: dir, Name: candidate}, nil
		}
	}
	candidate := stem + " " + strconv.Itoa(r.counter.Next()) + ext
	if r.claim(dir, candidate) {
		return Target{Dir: dir, Name: candidate}, nil
	}
	return Target{}, fmt.Errorf("%w: every file name for %q in %s is taken", ErrExhausted, resolved, dir)
}

func (r *Resolver) claim(dir, name string) bool {
	p := filepath.Join(dir, name)
	if _, ok := r.issued[p]; ok {
		return false
	}
	if _, err := os.Lstat(p); !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	r.issued[p] = struct{}{}
	return true
}
