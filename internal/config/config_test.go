package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/soilfusion-cli/internal/config"
)

func TestLoadDefaultsAndEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SOILFUSION_MODEL_DIR", "/srv/models")

	c, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DataDir != "data" {
		t.Fatalf("expected default data_dir, got %q", c.DataDir)
	}
	if c.ModelDir != "/srv/models" {
		t.Fatalf("expected env override for model_dir, got %q", c.ModelDir)
	}
	if c.Contamination != 0.05 || c.Seed != 42 {
		t.Fatalf("unexpected training defaults: %+v", c)
	}
}

func TestSaveThenLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "cfg.yaml")
	c := &config.Global{DataDir: "in", ModelDir: "out", PlotsDir: "p", Language: "hi", Seed: 7, Contamination: 0.1}
	if err := config.Save(c, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Language != "hi" || got.Seed != 7 || got.DataDir != "in" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestLoadRejectsBadContamination(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SOILFUSION_CONTAMINATION", "0.9")
	if _, err := config.Load(""); err == nil {
		t.Fatalf("expected error for contamination 0.9")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ServerAddr != ":5001" {
		t.Fatalf("expected default server_addr, got %q", c.ServerAddr)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}
