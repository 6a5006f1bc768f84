package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/gmail"
	"github.com/teemow/attachextract/internal/google"
	"github.com/teemow/attachextract/internal/instrumentation"
	"github.com/teemow/attachextract/internal/logging"
)

// ErrRunInProgress is returned by BeginRun while another run holds the lock.
var ErrRunInProgress = errors.New("an extraction run is already in progress")

// MailboxFactory opens the mailbox of an account.
type MailboxFactory func(ctx context.Context, account string) (extractor.Mailbox, error)

// ServerContext holds the state shared by the MCP tools: the base
// configuration, cached Gmail clients per account and the run lock.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        *config.Config
	logger     *slog.Logger
	provider   *instrumentation.Provider
	audit      *instrumentation.AuditLogger
	newMailbox MailboxFactory

	mu        sync.RWMutex
	mailboxes map[string]extractor.Mailbox
	shutdown  bool

	runMu   sync.Mutex
	running atomic.Bool
	lastRun atomic.Pointer[RunRecord]
}

// RunRecord describes a finished extraction run.
type RunRecord struct {
	Account  string
	Started  time.Time
	Finished time.Time
	Stats    *extractor.Stats
	Err      error
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithMailboxFactory replaces the Gmail client construction.
func WithMailboxFactory(f MailboxFactory) Option {
	return func(sc *ServerContext) { sc.newMailbox = f }
}

// WithInstrumentation records metrics of runs and API calls.
func WithInstrumentation(p *instrumentation.Provider) Option {
	return func(sc *ServerContext) { sc.provider = p }
}

// WithAuditLogger logs every mailbox mutation.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) { sc.audit = al }
}

// NewServerContext creates a new server context. Gmail clients are created
// lazily from the credentials and tokens named in cfg.
func NewServerContext(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		cfg:       cfg,
		logger:    logger,
		mailboxes: make(map[string]extractor.Mailbox),
	}
	sc.newMailbox = sc.gmailMailbox
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

func (sc *ServerContext) gmailMailbox(ctx context.Context, account string) (extractor.Mailbox, error) {
	store := google.NewTokenStore(sc.cfg.CredentialsFile, sc.cfg.TokensDir)
	client, err := gmail.NewClientForAccount(ctx, store, account,
		gmail.WithLogger(logging.NewSlogAdapter(sc.logger, "gmail")),
		gmail.WithMetrics(sc.Metrics()),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns a copy of the base configuration.
func (sc *ServerContext) Config() config.Config {
	return *sc.cfg
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.provider == nil {
		return nil
	}
	return sc.provider.Metrics()
}

// AuditLogger returns the mutation audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// MailboxForAccount returns the mailbox of an account, creating and
// caching the client on first use.
func (sc *ServerContext) MailboxForAccount(account string) (extractor.Mailbox, error) {
	if account == "" {
		account = sc.cfg.Account
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server is shutting down")
	}
	if mb, ok := sc.mailboxes[account]; ok {
		return mb, nil
	}

	mb, err := sc.newMailbox(sc.ctx, account)
	if err != nil {
		return nil, err
	}
	sc.mailboxes[account] = mb
	return mb, nil
}

// BeginRun takes the run lock. Only one extraction pipeline runs at a time
// because runs create their output directory and labels exclusively. The
// returned function releases the lock.
func (sc *ServerContext) BeginRun() (func(), error) {
	if !sc.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	sc.running.Store(true)
	var once sync.Once
	return func() {
		once.Do(func() {
			sc.running.Store(false)
			sc.runMu.Unlock()
		})
	}, nil
}

// RecordRun stores the outcome of the latest run.
func (sc *ServerContext) RecordRun(rec RunRecord) {
	sc.lastRun.Store(&rec)
}

// LastRun returns the latest recorded run, nil before the first one.
func (sc *ServerContext) LastRun() *RunRecord {
	return sc.lastRun.Load()
}

// RunInProgress reports whether a run holds the lock.
func (sc *ServerContext) RunInProgress() bool {
	return sc.running.Load()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context, which stops a run in progress
// between two messages.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
