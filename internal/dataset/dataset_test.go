package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func opts() Options {
	return Options{Now: func() time.Time { return testNow }, Seed: 42}
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadSynthesizesEverythingInEmptyDir(t *testing.T) {
	dir := t.TempDir()
	in, err := Load(dir, opts())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(in.Synthesized) != 5 {
		t.Fatalf("synthesized = %v, want 5 files", in.Synthesized)
	}
	wantFields := []soil.FieldProfile{
		{FieldID: 100001, FarmID: 200001, FieldName: "North Block", SoilType: "Clay", Area: 5.5},
		{FieldID: 100002, FarmID: 200001, FieldName: "South Block", SoilType: "Loam", Area: 4.2},
		{FieldID: 100003, FarmID: 200002, FieldName: "East Block", SoilType: "Sandy", Area: 8},
	}
	if diff := cmp.Diff(wantFields, in.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if got := in.Sensor.Len(); got != 3*syntheticDays*3 {
		t.Fatalf("sensor rows = %d", got)
	}
	if in.Weather.Len() != 3*syntheticDays {
		t.Fatalf("weather rows = %d", in.Weather.Len())
	}
	if len(in.Yields) != 3 || in.Yields[0].Year != 2023 || in.Yields[1].Season != soil.Rabi {
		t.Fatalf("yields = %+v", in.Yields)
	}
	if c, err := FirstCrop(in.Crops); err != nil || c.CropName != "Wheat" {
		t.Fatalf("first crop = %+v, %v", c, err)
	}
}

func TestLoadKeepsExistingFieldsAndWeather(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, FieldsFile, "field_id,farm_id,field_name,soil_type,area\n7,1,A,Loam,1.5\n8,1,B,Clay,2\n")
	write(t, dir, WeatherFile, "field_id,timestamp,rainfall,humidity,temperature\n7,2024-03-10 00:00:00,1,50,25\n")
	in, err := Load(dir, opts())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, f := range in.Synthesized {
		if f == FieldsFile || f == WeatherFile {
			t.Fatalf("%s should not be regenerated", f)
		}
	}
	if in.Weather.Len() != 1 {
		t.Fatalf("existing weather table replaced: %d rows", in.Weather.Len())
	}
	ids := map[string]bool{}
	for i := range in.Sensor.Rows {
		ids[in.Sensor.String(i, "field_id")] = true
	}
	if len(ids) != 2 || !ids["7"] || !ids["8"] {
		t.Fatalf("synthetic readings use field ids %v, want 7 and 8", ids)
	}
}

func TestLoadReportsUnwritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "nested")
	_, err := Load(dir, opts())
	var dfe *soil.DataFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("want DataFormatError, got %v", err)
	}
}

func TestParsersSkipIncompleteRows(t *testing.T) {
	log := zap.NewNop().Sugar()
	y, err := ParseYields(tabular.New("y", []string{"field_id", "yield_value", "season", "year"},
		[][]string{{"1", "4500", "Kharif", "2023"}, {"", "10", "Rabi", "2023"}, {"2", "", "Rabi", "2023"}}), log)
	if err != nil || len(y) != 1 || y[0].YieldValue != 4500 {
		t.Fatalf("yields = %+v, %v", y, err)
	}

	c, err := ParseCrops(tabular.New("c", []string{"crop_id", "crop_name"},
		[][]string{{"x", "Bad"}, {"3", "Maize"}}), log)
	if err != nil || len(c) != 1 || c[0].CropName != "Maize" {
		t.Fatalf("crops = %+v, %v", c, err)
	}

	_, err = ParseFields(tabular.New("f", []string{"soil_type"}, nil), log)
	var dfe *soil.DataFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("want DataFormatError for missing field_id, got %v", err)
	}
}

func TestFirstCropEmpty(t *testing.T) {
	_, err := FirstCrop(nil)
	if soil.Kind(err) != "DataFormatError" {
		t.Fatalf("kind = %s", soil.Kind(err))
	}
}
