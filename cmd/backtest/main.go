package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"investment-x/internal/config"
)

type rootOptions struct {
	configPath string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(ctx).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(ctx context.Context) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Portfolio backtesting and risk-constrained rebalancing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to YAML config")

	root.AddCommand(runCmd(ctx, opts))
	root.AddCommand(compareCmd(ctx, opts))
	root.AddCommand(loadPricesCmd(ctx, opts))
	root.AddCommand(verifyCmd(ctx, opts))
	root.AddCommand(checkDataCmd(ctx, opts))
	root.AddCommand(migrateCmd(ctx, opts))
	return root
}

// setup loads the config and builds the logger it describes.
func setup(opts *rootOptions) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.Logging) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging.level %q: %w", cfg.Level, err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
