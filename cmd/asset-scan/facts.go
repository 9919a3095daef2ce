package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/facts"
	"github.com/robert-at-pretension-io/verilog-assets/internal/indexer"
	"github.com/robert-at-pretension-io/verilog-assets/internal/sink"
	"github.com/robert-at-pretension-io/verilog-assets/internal/validator"
)

func (a *app) newFactsCmd() *cobra.Command {
	var (
		output    string
		deltaFrom string
		deltaOut  string
		deltaLast bool
		files     []string
	)
	cmd := &cobra.Command{
		Use:   "facts [dir]",
		Short: "Export the extracted facts as flat JSON tables",
		Long: `facts scans a directory like the default command but writes the
intermediate relations (files, symbols, ports, parameters, usages,
assignments, blocks and assets) instead of the CSV.

With --delta-from the export is compared against a previous one; with
--delta-last it is compared against the tables saved by the last facts run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deltaOut != "" && deltaFrom == "" && !deltaLast {
				return fmt.Errorf("--delta-out requires --delta-from or --delta-last")
			}
			root, err := absRoot(args)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.startTracing(ctx, cfg)()

			idx := indexer.NewWithConfig(cfg)
			idx.Logger = a.logger
			res, err := idx.Run(ctx, root)
			if err != nil {
				return err
			}

			tables := res.Tables()
			filter := fileFilter(root, files)
			if filter != nil {
				tables = facts.FilterTablesByFiles(tables, filter)
			}

			v, err := validator.NewFactsValidator()
			if err != nil {
				return fmt.Errorf("initialize facts validator: %w", err)
			}
			if err := v.ValidateTables(tables); err != nil {
				return fmt.Errorf("facts contract violation: %w", err)
			}

			if err := writeJSON(cmd, output, tables); err != nil {
				return fmt.Errorf("writing facts: %w", err)
			}

			var prev *facts.Tables
			switch {
			case deltaFrom != "":
				t, err := readTables(deltaFrom)
				if err != nil {
					return fmt.Errorf("reading delta-from: %w", err)
				}
				prev = &t
			case deltaLast:
				// a missing snapshot compares against empty tables
				t, _, err := indexer.LoadFactTables(idx.CacheDir(root))
				if err != nil {
					return err
				}
				prev = &t
			}

			if cfg.CacheEnabled() {
				if err := indexer.SaveFactTables(idx.CacheDir(root), tables); err != nil {
					a.logger.Warn("fact tables not cached", zap.Error(err))
				}
			}

			if prev == nil {
				return nil
			}
			delta := facts.ComputeDelta(*prev, tables)
			if filter != nil {
				delta = facts.FilterDeltaByFiles(delta, filter)
			}
			if deltaOut == "" {
				fmt.Fprint(cmd.ErrOrStderr(), renderDelta(assetRecords(delta.Added.Assets), assetRecords(delta.Removed.Assets)))
				return nil
			}
			if err := writeJSON(cmd, deltaOut, delta); err != nil {
				return fmt.Errorf("writing delta: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write facts JSON to file (default: stdout)")
	cmd.Flags().StringVar(&deltaFrom, "delta-from", "", "previous facts JSON to compute a delta from")
	cmd.Flags().StringVar(&deltaOut, "delta-out", "", "write the delta JSON to file (default: asset changes on stderr)")
	cmd.Flags().BoolVar(&deltaLast, "delta-last", false, "compute the delta against the previous facts run")
	cmd.Flags().StringSliceVar(&files, "file", nil, "restrict the export to these files")
	return cmd
}

// fileFilter resolves --file arguments to the absolute paths the indexer uses
func fileFilter(root string, files []string) map[string]bool {
	if len(files) == 0 {
		return nil
	}
	out := make(map[string]bool, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		out[filepath.Clean(f)] = true
	}
	return out
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(cmd *cobra.Command, path string, data any) error {
	if path != "" {
		return sink.WriteJSONAtomic(path, data)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func assetRecords(rows []facts.AssetRow) []asset.Record {
	out := make([]asset.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, asset.Record{
			Signal:     r.Signal,
			Width:      asset.ParseWidth(r.Width),
			Category:   asset.Category(r.Category),
			AppearedIn: r.AppearedIn,
			SourceFile: r.File,
			CIA:        r.CIA,
		})
	}
	return out
}
