package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/gmail"
	"github.com/teemow/attachextract/internal/google"
	"github.com/teemow/attachextract/internal/instrumentation"
	"github.com/teemow/attachextract/internal/logging"
	"github.com/teemow/attachextract/internal/server"
)

// accountMailbox is a mailbox that can report the authenticated address.
type accountMailbox interface {
	extractor.Mailbox
	EmailAddress(ctx context.Context) (string, error)
}

// mailboxOpener opens the mailbox of the configured account.
type mailboxOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (accountMailbox, error)

func openGmail(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (accountMailbox, error) {
	store := google.NewTokenStore(cfg.CredentialsFile, cfg.TokensDir)
	client, err := gmail.NewClientForAccount(ctx, store, cfg.Account,
		gmail.WithLogger(logging.NewSlogAdapter(logger, "gmail")),
		gmail.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrConfiguration, err)
	}
	return logger, nil
}

// telemetry bundles the instrumentation of a command.
type telemetry struct {
	provider      *instrumentation.Provider
	audit         *instrumentation.AuditLogger
	metricsServer *server.MetricsServer
	logger        *slog.Logger
}

// startTelemetry creates the instrumentation provider. Metrics are recorded
// only when an address to serve them on is configured.
func startTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if cfg.MetricsAddr != "" {
		instrConfig.Enabled = true
		instrConfig.MetricsExporter = instrumentation.ExporterPrometheus
	}
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrConfiguration, err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return &telemetry{
		provider: provider,
		audit:    instrumentation.NewAuditLogger(logger.With(slog.String("component", "audit")), instrConfig.AuditLogging),
		logger:   logger,
	}, nil
}

// serveMetrics serves the Prometheus and health endpoints on addr in the
// background. sc may be nil.
func (t *telemetry) serveMetrics(addr string, sc *server.ServerContext) error {
	if addr == "" {
		return nil
	}
	ms, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: t.provider,
		Health:                  server.NewHealthChecker(sc),
		Logger:                  t.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}
	t.metricsServer = ms
	go func() {
		if err := ms.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	return nil
}

func (t *telemetry) metrics() *instrumentation.Metrics {
	return t.provider.Metrics()
}

// shutdown stops the metrics server and flushes pending telemetry.
func (t *telemetry) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout+5*time.Second)
	defer cancel()
	if t.metricsServer != nil {
		if err := t.metricsServer.Shutdown(ctx); err != nil {
			t.logger.Warn("error during metrics server shutdown", logging.Err(err))
		}
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		t.logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}
