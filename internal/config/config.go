package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir"`
	PlotsDir string `mapstructure:"plots_dir" yaml:"plots_dir"`
	// Language for narrative output: en | hi
	Language string `mapstructure:"language" yaml:"language"`
	// HistoryDB is a sqlite path; empty disables analysis history.
	HistoryDB  string `mapstructure:"history_db" yaml:"history_db"`
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`

	// Training knobs
	Seed          int64   `mapstructure:"seed" yaml:"seed"`
	Contamination float64 `mapstructure:"contamination" yaml:"contamination"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".soilfusion"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.soilfusion/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SOILFUSION")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "data")
	v.SetDefault("model_dir", "models")
	v.SetDefault("plots_dir", "plots")
	v.SetDefault("language", "en")
	v.SetDefault("history_db", "")
	v.SetDefault("server_addr", ":5001")
	v.SetDefault("log_level", "info")
	v.SetDefault("seed", 42)
	v.SetDefault("contamination", 0.05)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// the file is optional, but one that exists must parse
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5), got %v", c.Contamination)
	}
	return &c, nil
}
