package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/soilfusion-cli/internal/history"
	"github.com/KaramelBytes/soilfusion-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

// execCmd runs the root command with args and returns its stdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Reset sticky flags that may persist Changed state across invocations
	for _, name := range []string{"data-dir", "model-dir", "plots-dir", "config"} {
		resetFlag(rootCmd, name, "")
	}
	resetFlag(predictCmd, "lang", "")
	resetFlag(trainCmd, "json", "false")
	resetFlag(historyCmd, "json", "false")
	resetFlag(historyCmd, "limit", "50")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlag(c *cobra.Command, name, val string) {
	fl := c.Flags().Lookup(name)
	if fl == nil {
		fl = c.PersistentFlags().Lookup(name)
	}
	if fl == nil {
		return
	}
	_ = fl.Value.Set(val)
	fl.Changed = false
}

// runCmd is execCmd that fails the test on error.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func setupHome(t *testing.T) []string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return []string{
		"--data-dir", filepath.Join(home, "data"),
		"--model-dir", filepath.Join(home, "models"),
		"--plots-dir", filepath.Join(home, "plots"),
	}
}

func TestCLI_TrainThenPredict(t *testing.T) {
	dirs := setupHome(t)

	out := runCmd(t, append(dirs, "train")...)
	if !strings.Contains(out, "✓ Yield model") || !strings.Contains(out, "✓ Anomaly model") {
		t.Fatalf("unexpected train output:\n%s", out)
	}

	out = runCmd(t, append(dirs, "predict", "100001", "--lang", "hi")...)
	var res pipeline.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("predict output is not JSON: %v\n%s", err, out)
	}
	if res.FieldID != 100001 || len(res.HistoricalData) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Summary, "मिट्टी") {
		t.Fatalf("expected Hindi summary, got %q", res.Summary)
	}
}

func TestCLI_PredictReportsErrorPayload(t *testing.T) {
	dirs := setupHome(t)

	out, err := execCmd(t, append(dirs, "predict", "100001")...)
	if !errors.Is(err, errReported) {
		t.Fatalf("expected reported error, got %v", err)
	}
	var p pipeline.ErrorPayload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("error payload is not JSON: %v\n%s", err, out)
	}
	if p.Kind != "ArtifactNotFoundError" || p.Trace == "" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	runCmd(t, append(dirs, "train")...)
	out, err = execCmd(t, append(dirs, "predict", "999")...)
	if !errors.Is(err, errReported) || !strings.Contains(out, `"kind": "FieldNotFoundError"`) {
		t.Fatalf("expected FieldNotFoundError payload, got %v\n%s", err, out)
	}

	out, err = execCmd(t, append(dirs, "predict", "abc")...)
	if !errors.Is(err, errReported) || !strings.Contains(out, "InternalError") {
		t.Fatalf("expected payload for bad id, got %v\n%s", err, out)
	}
}

func TestCLI_HistoryRecordsPredictions(t *testing.T) {
	dirs := setupHome(t)
	db := filepath.Join(t.TempDir(), "history.db")

	if _, err := execCmd(t, "history", "100001"); err == nil {
		t.Fatalf("expected error while history is disabled")
	}
	runCmd(t, "config", "set", "history_db", db)
	runCmd(t, append(dirs, "train")...)
	runCmd(t, append(dirs, "predict", "100002")...)

	out := runCmd(t, "history", "100002", "--json")
	var entries []history.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].FieldID != 100002 {
		t.Fatalf("unexpected history: %+v", entries)
	}
	if entries[0].SoilHealth != history.Healthy && entries[0].SoilHealth != history.Critical {
		t.Fatalf("unexpected soil health %q", entries[0].SoilHealth)
	}

	out = runCmd(t, "history", "100003")
	if !strings.Contains(out, "(no history)") {
		t.Fatalf("expected empty history, got %q", out)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	setupHome(t)
	runCmd(t, "config", "set", "language", "hindi")
	runCmd(t, "config", "set", "seed", "7")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "language: hi") || !strings.Contains(out, "seed: 7") {
		t.Fatalf("unexpected config:\n%s", out)
	}
	if _, err := execCmd(t, "config", "set", "contamination", "0.7"); err == nil {
		t.Fatalf("expected invalid contamination to be rejected")
	}
	if _, err := execCmd(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}
