// Package main is the bazaarctl admin tool: schema migrations and catalog seeding.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/bazaar/pkg/bootstrap"
	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/spf13/cobra"
)

const databaseURLEnv = "STOREFRONT_DATABASE_URL"

type options struct {
	databaseURL string
	timeout     time.Duration
	logLevel    string
	logger      *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "bazaarctl",
		Short:         "Administer the bazaar storefront database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.logger = bootstrap.NewLogger(config.LogConfig{Level: opts.logLevel, Format: config.LogFormatText},
				cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv(databaseURLEnv),
		"Postgres URL (default from "+databaseURLEnv+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "database connect timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newMigrateCmd(opts), newSeedCmd(opts))
	return root
}

func (o *options) requireDatabase() error {
	if o.databaseURL == "" {
		return fmt.Errorf("database URL is required: set --database-url or %s", databaseURLEnv)
	}
	return nil
}
