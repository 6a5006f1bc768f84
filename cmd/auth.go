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
	"github.com/teemow/attachextract/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		check      bool
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to a Gmail account",
		Long: `Run the OAuth authorization flow for a Gmail account and store the token
below the tokens directory. The consent URL is printed; after approval Google
redirects the browser to a listener on the loopback interface.

Use --account to manage several accounts side by side.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if check {
				return runCheckAuth(ctx, cfg, openGmail, cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			return runAuth(ctx, cfg, listenAddr, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddAuthFlags(cmd.Flags())
	cmd.Flags().BoolVar(&check, "check", false, "Verify the stored token instead of running the authorization flow")
	cmd.Flags().StringVar(&listenAddr, "listen", google.DefaultLoopbackAddr, "Loopback address receiving the OAuth redirect")

	return cmd
}

func runAuth(ctx context.Context, cfg *config.Config, listenAddr string, out, logOut io.Writer) error {
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	store := google.NewTokenStore(cfg.CredentialsFile, cfg.TokensDir)
	flow := &google.LoopbackFlow{
		Store: store,
		Addr:  listenAddr,
		Prompt: func(authURL string) {
			fmt.Fprintf(out, "Open the following URL in your browser to authorize account %q:\n\n%s\n\n", cfg.Account, authURL)
		},
	}
	if err := flow.Authorize(ctx, cfg.Account); err != nil {
		return fmt.Errorf("failed to authorize account %q: %w", cfg.Account, err)
	}

	path, err := store.TokenFilePath(cfg.Account)
	if err != nil {
		return err
	}
	logger.Info("stored OAuth token", slog.String("account", cfg.Account), slog.String("path", path))
	fmt.Fprintf(out, "Token for account %q saved to %s\n", cfg.Account, path)
	return nil
}
