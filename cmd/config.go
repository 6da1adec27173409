package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/soilfusion-cli/internal/config"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SoilFusion configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			if cfgErr != nil {
				fmt.Fprintf(out, "reason: %v\n", cfgErr)
			}
			return nil
		}
		fmt.Fprintf(out, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(out, "model_dir: %s\n", cfg.ModelDir)
		fmt.Fprintf(out, "plots_dir: %s\n", cfg.PlotsDir)
		fmt.Fprintf(out, "language: %s\n", cfg.Language)
		if cfg.HistoryDB != "" {
			fmt.Fprintf(out, "history_db: %s\n", cfg.HistoryDB)
		}
		fmt.Fprintf(out, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "seed: %d\n", cfg.Seed)
		fmt.Fprintf(out, "contamination: %.3f\n", cfg.Contamination)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "data_dir":
			cfg.DataDir = val
		case "model_dir":
			cfg.ModelDir = val
		case "plots_dir":
			cfg.PlotsDir = val
		case "language":
			switch val {
			case "en", "EN", "english":
				cfg.Language = string(narrative.English)
			case "hi", "HI", "hindi":
				cfg.Language = string(narrative.Hindi)
			default:
				return fmt.Errorf("invalid language: %s (use en or hi)", val)
			}
		case "history_db":
			cfg.HistoryDB = val
		case "server_addr":
			cfg.ServerAddr = val
		case "log_level":
			cfg.LogLevel = val
		case "seed":
			i, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int for seed: %w", err)
			}
			cfg.Seed = i
		case "contamination":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f >= 0.5 {
				return fmt.Errorf("invalid contamination: %v (must be in (0, 0.5))", val)
			}
			cfg.Contamination = f
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
