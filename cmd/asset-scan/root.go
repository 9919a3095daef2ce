package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/logging"
	"github.com/robert-at-pretension-io/verilog-assets/internal/observability"
)

// app holds the persistent flags shared by every subcommand
type app struct {
	configPath string
	verbose    bool
	logJSON    bool

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	flags := &scanFlags{}

	root := &cobra.Command{
		Use:   "asset-scan [dir]",
		Short: "Inventory security-relevant signals in Verilog/SystemVerilog sources",
		Long: `asset-scan walks a directory for .v and .sv files and classifies the
signals it finds as Control, Config, Status, Data or Param assets.

Each record carries the signal name, its bit width, the construct it
appeared in and a CIA tag. Records are appended to asset_list.csv in the
scanned directory unless --output or the config file says otherwise.

Run without a directory to be prompted for one.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.logJSON})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScanCmd(cmd, args, flags)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: search cwd, scan root, ~/.config/asset_scan)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "emit logs as JSON")
	flags.register(root)

	root.AddCommand(
		a.newInitCmd(),
		a.newFactsCmd(),
		a.newWatchCmd(),
		a.newHistoryCmd(),
		a.newDiffCmd(),
	)
	return root
}

// loadConfig reads the explicit --config file or searches around root
func (a *app) loadConfig(root string) (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFile(a.configPath)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// startTracing installs the OTLP exporter when configured and returns its shutdown
func (a *app) startTracing(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		a.logger.Warn("tracing disabled", zap.Error(err))
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}
}

// absRoot resolves the scan root so history lookups are stable across cwd
func absRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	return abs, nil
}
