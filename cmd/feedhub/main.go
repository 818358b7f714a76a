package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"feedhub/internal/adapter/syndication"
	"feedhub/internal/app"
	"feedhub/internal/config"
	"feedhub/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:           "feedhub",
		Short:         "feedhub aggregates groups of blog feeds into one feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to the JSON config file")

	root.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		aggregateCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates the config and builds the logger.
func setup(configPath string) (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, closeLogs, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not setup logger: %w", err)
	}
	slog.SetDefault(log)
	return cfg, log, closeLogs, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed, read and top endpoints over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLogs, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLogs()
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the read counter schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLogs, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLogs()
			store, err := app.OpenStore(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			store.Close()
			log.Info("Schema is up to date", slog.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func aggregateCmd(configPath *string) *cobra.Command {
	var (
		format  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "aggregate [group]",
		Short: "Aggregate one group and print the feed to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ok := syndication.ParseFormat(format)
			if !ok {
				return fmt.Errorf("unsupported format %q", format)
			}
			cfg, log, closeLogs, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLogs()

			group := cfg.App.DefaultGroup
			if len(args) == 1 {
				group = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			feed, err := a.Aggregator().Aggregate(ctx, group, time.Now())
			if err != nil {
				return err
			}
			body, err := syndication.Render(feed, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), body)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "atom", "Output format: atom, rss or json")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Overall aggregation deadline")
	return cmd
}
