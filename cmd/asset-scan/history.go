package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/verilog-assets/internal/history"
)

func (a *app) openHistory(args []string) (*history.Store, string, error) {
	root, err := absRoot(args)
	if err != nil {
		return nil, "", err
	}
	cfg, err := a.loadConfig(root)
	if err != nil {
		return nil, "", err
	}
	store, err := history.Open(historyPath(root, cfg))
	if err != nil {
		return nil, "", err
	}
	return store, root, nil
}

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit   int
		prune   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "history [dir]",
		Short: "List recorded scans of a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, root, err := a.openHistory(args)
			if err != nil {
				return err
			}
			defer store.Close()

			if prune > 0 {
				n, err := store.Prune(root, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d runs\n", n)
			}

			runs, err := store.ListRuns(root, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs for", root)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tFILES\tRECORDS\tERRORS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Files, r.Records, r.Errors, r.Duration.Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many runs (0 = all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N runs before listing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print runs as JSON")
	return cmd
}

func (a *app) newDiffCmd() *cobra.Command {
	var (
		dir     string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show assets added or removed between two recorded scans",
		Long: `diff compares two runs from the history database. A run is named by
its id, a unique id prefix, "latest" or "previous". The defaults compare
the previous run with the latest one.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, root, err := a.openHistory([]string{dir})
			if err != nil {
				return err
			}
			defer store.Close()

			refs := []string{"previous", "latest"}
			copy(refs, args)
			from, err := store.ResolveRun(root, refs[0])
			if err != nil {
				return runError(refs[0], err)
			}
			to, err := store.ResolveRun(root, refs[1])
			if err != nil {
				return runError(refs[1], err)
			}

			d, err := store.Compare(from, to)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d added, %d removed\n",
				shortID(from.ID), shortID(to.ID), len(d.Added), len(d.Removed))
			fmt.Fprint(cmd.OutOrStdout(), renderDelta(d.Added, d.Removed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "scanned directory whose runs are compared")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the diff as JSON")
	return cmd
}

func runError(ref string, err error) error {
	if errors.Is(err, history.ErrRunNotFound) {
		return fmt.Errorf("%w: %q (record runs with --history)", err, ref)
	}
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
