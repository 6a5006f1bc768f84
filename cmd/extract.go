package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/logging"
)

const flagOnlyCheckAuth = "only-check-auth"

func newExtractCmd() *cobra.Command {
	var onlyCheckAuth bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract attachments from Gmail messages",
		Long: `Save the attachments of the messages matching a Gmail search query below
the output directory and replace each message by a copy whose attachments are
swapped for small text descriptors.

The original message is labelled "<prefix> [pre]" and the rewritten copy
"<prefix> [post]"; nothing is deleted. Use --dry-run to extract and validate
without modifying the mailbox.

Settings are read from the --config file, then ATTACHEXTRACT_* environment
variables, then flags.`,
		Example: `  attachextract extract -q 'has:attachment larger:5M older_than:1y' -o ./attachments
  attachextract extract -q 'from:scanner@example.com' --filename '.*\.pdf' --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if onlyCheckAuth {
				return runCheckAuth(ctx, cfg, openGmail, cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			return runExtract(ctx, cfg, openGmail, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddAuthFlags(cmd.Flags())
	config.AddExtractFlags(cmd.Flags())
	cmd.Flags().BoolVar(&onlyCheckAuth, flagOnlyCheckAuth, false, "Only verify that the stored token grants access to the mailbox")

	return cmd
}

// runExtract runs the pipeline and prints the summary to out. The summary is
// printed even when the run fails.
func runExtract(ctx context.Context, cfg *config.Config, open mailboxOpener, out, logOut io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := cfg.ExtractorOptions()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	tel, err := startTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tel.shutdown()
	if err := tel.serveMetrics(cfg.MetricsAddr, nil); err != nil {
		return err
	}

	mailbox, err := open(ctx, cfg, logger, tel.metrics())
	if err != nil {
		return err
	}

	ext, err := extractor.New(mailbox, mailbox, opts,
		extractor.WithLogger(logger),
		extractor.WithMetrics(tel.metrics()),
		extractor.WithAuditLogger(tel.audit),
	)
	if err != nil {
		return err
	}

	stats, runErr := ext.Run(ctx)
	fmt.Fprint(out, stats.Summary())
	if runErr != nil {
		logger.Error("extraction failed", logging.Err(runErr))
	}
	return runErr
}

// runCheckAuth opens the mailbox and reports the authenticated address.
func runCheckAuth(ctx context.Context, cfg *config.Config, open mailboxOpener, out, logOut io.Writer) error {
	if err := cfg.ValidateSettings(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	mailbox, err := open(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	email, err := mailbox.EmailAddress(ctx)
	if err != nil {
		return fmt.Errorf("authentication check failed for account %q: %w", cfg.Account, err)
	}
	logger.Info("authentication check passed", slog.String("account", cfg.Account), logging.UserHash(email))
	fmt.Fprintf(out, "Account %q is authorized for %s\n", cfg.Account, email)
	return nil
}
