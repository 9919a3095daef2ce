package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
)

func (a *app) newInitCmd() *cobra.Command {
	var (
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an asset_scan configuration file in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			switch strings.ToLower(format) {
			case "json":
				configPath = "asset_scan.json"
			case "toml":
				configPath = "asset_scan.toml"
			case "yaml", "yml":
				configPath = "asset_scan.yaml"
			default:
				return fmt.Errorf("unsupported config format %q", format)
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(configPath); err == nil && !force {
				fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
				var response string
				_, _ = fmt.Fscanln(cmd.InOrStdin(), &response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			fmt.Fprintf(out, "Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - Source include/exclude patterns")
			fmt.Fprintln(out, "  - Category widths and the condition stoplist")
			fmt.Fprintln(out, "  - Output file, history, policy and metrics")
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "config format: json, toml or yaml")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite without asking")
	return cmd
}
