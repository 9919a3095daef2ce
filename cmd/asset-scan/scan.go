package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/history"
	"github.com/robert-at-pretension-io/verilog-assets/internal/indexer"
	"github.com/robert-at-pretension-io/verilog-assets/internal/observability"
	"github.com/robert-at-pretension-io/verilog-assets/internal/policy"
	"github.com/robert-at-pretension-io/verilog-assets/internal/sink"
)

// errAllFilesFailed is returned when no source file could be analyzed
var errAllFilesFailed = errors.New("every source file failed to scan")

// scanFlags override the loaded config for one invocation
type scanFlags struct {
	output     string
	format     string
	categories []string
	jobs       int
	timing     string
	policyDir  string
	history    bool
	metrics    string
	noCache    bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "output file (default: asset_list.csv or asset_list.json in the scanned directory)")
	fs.StringVar(&f.format, "format", "", "output format: csv (append) or json")
	fs.StringSliceVar(&f.categories, "category", nil, "only emit these categories (control,config,status,data,param)")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "files analyzed in parallel (default: GOMAXPROCS)")
	fs.StringVar(&f.timing, "timing", "", "write per-stage and per-file timings as JSONL to this file")
	fs.StringVar(&f.policyDir, "policy", "", "directory of .rego modules applied to the records")
	fs.BoolVar(&f.history, "history", false, "record the run in the history database")
	fs.StringVar(&f.metrics, "metrics", "", "write Prometheus metrics to this textfile")
	fs.BoolVar(&f.noCache, "no-cache", false, "ignore and do not update the facts cache")
}

// apply copies set flags into cfg and revalidates it
func (f *scanFlags) apply(cfg *config.Config) error {
	if f.output != "" {
		out, err := filepath.Abs(f.output)
		if err != nil {
			return fmt.Errorf("resolve output: %w", err)
		}
		cfg.Output.File = out
	}
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if len(f.categories) > 0 {
		cfg.Categories = append([]string(nil), f.categories...)
	}
	if f.jobs > 0 {
		cfg.Analysis.MaxParallelFiles = f.jobs
	}
	if f.policyDir != "" {
		cfg.Policy.Dir = f.policyDir
	}
	if f.history {
		cfg.History.Enabled = true
	}
	if f.metrics != "" {
		cfg.Metrics.Textfile = f.metrics
	}
	if f.noCache {
		disabled := false
		cfg.Analysis.Cache.Enabled = &disabled
	}
	return cfg.Validate()
}

func (a *app) runScanCmd(cmd *cobra.Command, args []string, flags *scanFlags) error {
	if len(args) == 0 {
		dir, err := promptForDirectory(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		args = []string{dir}
	}
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

	out, err := a.scan(ctx, root, cfg, flags.timing)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSummary(out))
	return nil
}

// scanOutcome is what one scan produced and where it went
type scanOutcome struct {
	Result  *indexer.Result
	Output  string
	Written int
	Run     *history.Run
}

// scan runs the indexer and delivers its records to the sink, the history
// database and the metrics textfile.
func (a *app) scan(ctx context.Context, root string, cfg *config.Config, timingPath string) (*scanOutcome, error) {
	idx := indexer.NewWithConfig(cfg)
	idx.Logger = a.logger
	if timingPath != "" {
		idx.Timing = true
		idx.TimingPath = timingPath
	}
	if cfg.Policy.Dir != "" {
		engine, err := policy.New(cfg.Policy.Dir)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		idx.Policy = engine
	}

	res, err := idx.Run(ctx, root)
	if err != nil {
		return nil, err
	}
	if res.Stats.Files > 0 && res.Stats.Failed == res.Stats.Files {
		return nil, fmt.Errorf("%w (%d files)", errAllFilesFailed, res.Stats.Failed)
	}

	out := &scanOutcome{Result: res, Output: cfg.OutputPath(root)}
	out.Written, err = sink.Write(out.Output, cfg.Output.Format, res.Records)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", out.Output, err)
	}
	a.logger.Info("records written", zap.String("output", out.Output), zap.Int("records", out.Written))

	if cfg.History.Enabled {
		run, err := a.saveHistory(root, cfg, res)
		if err != nil {
			return nil, err
		}
		out.Run = &run
	}

	if cfg.Metrics.Textfile != "" {
		if err := observability.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("metrics export failed", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	return out, nil
}

func (a *app) saveHistory(root string, cfg *config.Config, res *indexer.Result) (history.Run, error) {
	store, err := history.Open(historyPath(root, cfg))
	if err != nil {
		return history.Run{}, err
	}
	defer store.Close()

	run, err := store.SaveRun(history.Run{
		Root:      root,
		StartedAt: res.Started,
		Duration:  res.Duration,
		Files:     res.Stats.Files,
		Errors:    res.Stats.Failed,
	}, res.Records)
	if err != nil {
		return history.Run{}, fmt.Errorf("save run: %w", err)
	}
	a.logger.Debug("run recorded", zap.String("id", run.ID), zap.String("db", store.Path()))
	return run, nil
}

// historyPath resolves the history database against the scan root
func historyPath(root string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.History.Path) {
		return cfg.History.Path
	}
	return filepath.Join(root, cfg.History.Path)
}
