package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pevans/pagefeed"
	"github.com/pevans/pagefeed/config"
	"github.com/pevans/pagefeed/discovery"
	"github.com/pevans/pagefeed/newsfeed"
	"github.com/pevans/pagefeed/sources"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command. Logs go to logOut.
func newRootCmd(logOut io.Writer) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "pagefeed <config.yaml>",
		Short: "Publish RSS feeds for web pages that have none",
		Long: `pagefeed checks every page listed in the configuration file, records what
changed since the previous run and writes one RSS feed per page, plus an
index.html and an index.opml listing all feeds.

Each invocation performs a single pass; run it from cron or a systemd timer.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], verbose, logOut)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, configPath string, verbose bool, logOut io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg.Log, verbose, logOut)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("state", cfg.StateFile).Msg("Failed to open state store")
		return err
	}
	defer store.Close()

	writer, err := newsfeed.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		logger.Error().Err(err).Str("output", cfg.OutputDir).Msg("Failed to prepare output directory")
		return err
	}

	fetcher := discovery.NewFetcher(discovery.NewHTTPClient(cfg.Timeout), logger)
	svc := pagefeed.NewService(cfg.Resources, fetcher, store, writer, logger)

	logger.Debug().
		Str("config", cfg.Path).
		Int("pages", len(cfg.Resources)).
		Str("backend", cfg.StateBackend).
		Msg("Starting pass")

	summary, err := svc.RunPass(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Pass failed")
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"checked %d, changed %d, failed %d, skipped %d, wrote %d files\n",
		summary.Checked, summary.Changed, summary.Failed, summary.Skipped, summary.Written)

	return nil
}

// openStore opens the configured state backend.
func openStore(cfg *config.Config, logger zerolog.Logger) (sources.Store, error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		return sources.NewSQLiteStore(cfg.StateFile, logger)
	default:
		return sources.NewFileStore(cfg.StateFile, logger), nil
	}
}
