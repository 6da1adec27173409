package cmd

import (
	"errors"
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/soilfusion-cli/internal/config"
	"github.com/KaramelBytes/soilfusion-cli/internal/logging"
	"github.com/KaramelBytes/soilfusion-cli/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Directory overrides (take precedence over config)
	flagDataDir  string
	flagModelDir string
	flagPlotsDir string

	// Loaded configuration
	cfg    *cfgpkg.Global
	cfgErr error
)

// errReported marks a failure whose payload was already written to stdout.
var errReported = errors.New("error already reported")

var rootCmd = &cobra.Command{
	Use:           "soilfusion",
	Short:         "SoilFusion: soil sensor fusion, yield models and planting advice",
	Long:          `SoilFusion ingests field sensor readings in several upload shapes, trains yield, anomaly and soil-cluster models, and produces per-field planting recommendations with a farmer-facing summary.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "✗ Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.soilfusion/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "input data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModelDir, "model-dir", "", "model artifact directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagPlotsDir, "plots-dir", "", "diagnostics output directory (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		cfg, cfgErr = nil, err
		return
	}
	cfg, cfgErr = c, nil

	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("model-dir") && flagModelDir != "" {
		cfg.ModelDir = flagModelDir
	}
	if f.Changed("plots-dir") && flagPlotsDir != "" {
		cfg.PlotsDir = flagPlotsDir
	}
	if err := logging.Init(debug, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
}

// requireConfig returns the loaded configuration or the reason it failed.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("load config: %w", cfgErr)
		}
		return nil, errors.New("no configuration loaded")
	}
	return cfg, nil
}

func logger() *zap.SugaredLogger { return logging.Sugared() }

func newPipeline() (*pipeline.Pipeline, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.New(c, logger()), nil
}
