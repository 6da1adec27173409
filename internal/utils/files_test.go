package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.json")
	if err := SafeWriteFile(p, []byte("one")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := SafeWriteFile(p, []byte("two")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" {
		t.Fatalf("got %q, %v", b, err)
	}
	if FileExists(p + ".tmp") {
		t.Fatalf("temp file left behind")
	}
	if err := SafeWriteFile(filepath.Join(dir, "missing", "x"), nil); err == nil {
		t.Fatalf("expected error for missing parent dir")
	}
}

func TestEnsureDirsAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDirs("", dir); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if FileExists(dir) {
		t.Fatalf("a directory is not a file")
	}
	if StemOf("/x/sensor_readings.xlsx") != "sensor_readings" {
		t.Fatalf("StemOf = %q", StemOf("/x/sensor_readings.xlsx"))
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]int{"a": 1})
	if err != nil || string(b) != "{\n  \"a\": 1\n}" {
		t.Fatalf("got %q, %v", b, err)
	}
}
