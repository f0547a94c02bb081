package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"socialnet/domain"
	"socialnet/http"
	"socialnet/logger"
	"socialnet/telemetry"
)

// main is the app's entry point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions holds the flags shared by all commands.
type rootOptions struct {
	configPath string
	prod       bool
}

// newRootCommand creates the socialnet command. Without a subcommand it serves the API.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "socialnet",
		Short:         "socialnet - a small social network JSON API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a JSON config file (default ./.config.json)")
	cmd.PersistentFlags().BoolVar(&opts.prod, "prod", false, "Provide this flag in production to ensure that a config file is provided before the application starts.")

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	// Execute migrations.
	if err := a.db.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, a.cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Start the crud services.
	services, err := a.services(ctx)
	if err != nil {
		return err
	}

	// Set up a webserver and serve the app until interrupted.
	server := http.NewServer(services, http.Config{
		SessionTTL:   a.cfg.Session.TTL,
		SecureCookie: a.cfg.IsProd(),
		AuthRate:     rate.Limit(a.cfg.RateLimit.RPS),
		AuthBurst:    a.cfg.RateLimit.Burst,
	})
	return server.Run(ctx, fmt.Sprintf(":%d", a.cfg.Port))
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			if reset {
				logger.Warn("dropping all tables")
				return a.db.DestructiveReset()
			}
			return a.db.AutoMigrate()
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop all tables before migrating")
	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare post counters with their likes and comments",
		Long: `Compare the stored likes_count and comments_count of every post with the
actual number of likes and comments, and print the posts that drifted as JSON.
With --fix the drifting counters are rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			services, err := a.services(cmd.Context())
			if err != nil {
				return err
			}

			check := services.Reconciler.Check
			if fix {
				check = services.Reconciler.Fix
			}
			drift, err := check(cmd.Context())
			if err != nil {
				return err
			}
			if drift == nil {
				drift = []domain.CounterDrift{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(drift)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite drifting counters")
	return cmd
}
