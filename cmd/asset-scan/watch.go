package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/history"
	"github.com/robert-at-pretension-io/verilog-assets/internal/watcher"
)

func (a *app) newWatchCmd() *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rescan on every source change and print the asset delta",
		Long: `watch runs one scan, then rescans whenever a .v or .sv file under the
directory changes. Each rescan writes its records like the default command
and prints the records that appeared or disappeared since the previous scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := absRoot(args)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.startTracing(ctx, cfg)()
			return a.watch(ctx, cmd, root, cfg, flags.timing)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, root string, cfg *config.Config, timingPath string) error {
	out := cmd.OutOrStdout()

	first, err := a.scan(ctx, root, cfg, timingPath)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderSummary(first))
	prev := first.Result.Records

	matcher, err := cfg.FileMatcher()
	if err != nil {
		return err
	}
	debounce, minInterval := cfg.WatchTimings()
	w, err := watcher.New(root, matcher, debounce, minInterval, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("watching for changes", zap.String("root", root), zap.Duration("debounce", debounce))
	return w.Run(ctx, func(ctx context.Context, paths []string) {
		a.logger.Info("sources changed", zap.Int("files", len(paths)))
		next, err := a.scan(ctx, root, cfg, timingPath)
		if err != nil {
			a.logger.Error("rescan failed", zap.Error(err))
			return
		}
		fmt.Fprint(out, rescanDelta(prev, next.Result.Records))
		prev = next.Result.Records
	})
}

func rescanDelta(prev, next []asset.Record) string {
	d := history.DiffRecords(prev, next)
	if len(d.Added) == 0 && len(d.Removed) == 0 {
		return mutedStyle.Render("no asset changes") + "\n"
	}
	return renderDelta(d.Added, d.Removed)
}
