// Package dataset loads the per-run input snapshot from the data directory.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
	"go.uber.org/zap"
)

// Input file names inside the data directory.
const (
	FieldsFile  = "fields.csv"
	SensorFile  = "sensor_readings.csv"
	WeatherFile = "weather_data.csv"
	YieldFile   = "yield_history.csv"
	CropsFile   = "crops.csv"
)

// RequiredFiles must exist (or be synthesized) before a run.
var RequiredFiles = []string{SensorFile, FieldsFile, YieldFile, CropsFile}

// Inputs is the raw snapshot for one pipeline run.
type Inputs struct {
	Fields []soil.FieldProfile
	Sensor *tabular.Table
	// Weather is nil when weather_data.csv is absent.
	Weather *tabular.Table
	Yields  []soil.YieldRecord
	Crops   []soil.Crop
	// Synthesized lists files generated because they were missing.
	Synthesized []string
}

// Options controls loading.
type Options struct {
	Now  func() time.Time
	Seed int64
	Log  *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return o
}

// Load reads every input table from dir, generating synthetic stand-ins for
// missing required files first.
func Load(dir string, opt Options) (*Inputs, error) {
	opt = opt.withDefaults()
	var missing []string
	for _, f := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	in := &Inputs{}
	if len(missing) > 0 {
		opt.Log.Warnw("missing input files, generating synthetic data", "files", missing)
		written, err := GenerateSynthetic(dir, missing, opt)
		if err != nil {
			return nil, &soil.DataFormatError{Source: dir, Reason: "synthetic data generation failed", Err: err}
		}
		in.Synthesized = written
	}

	fieldsT, err := readRequired(dir, FieldsFile)
	if err != nil {
		return nil, err
	}
	if in.Fields, err = ParseFields(fieldsT, opt.Log); err != nil {
		return nil, err
	}
	if in.Sensor, err = readRequired(dir, SensorFile); err != nil {
		return nil, err
	}
	yieldT, err := readRequired(dir, YieldFile)
	if err != nil {
		return nil, err
	}
	if in.Yields, err = ParseYields(yieldT, opt.Log); err != nil {
		return nil, err
	}
	cropsT, err := readRequired(dir, CropsFile)
	if err != nil {
		return nil, err
	}
	if in.Crops, err = ParseCrops(cropsT, opt.Log); err != nil {
		return nil, err
	}

	wp := filepath.Join(dir, WeatherFile)
	if _, err := os.Stat(wp); err == nil {
		if in.Weather, err = tabular.ReadCSV(wp); err != nil {
			return nil, &soil.DataFormatError{Source: WeatherFile, Reason: "unreadable", Err: err}
		}
	}
	opt.Log.Infow("loaded inputs",
		"fields", len(in.Fields), "sensor_rows", in.Sensor.Len(), "weather_rows", in.Weather.Len(),
		"yields", len(in.Yields), "crops", len(in.Crops))
	return in, nil
}

func readRequired(dir, name string) (*tabular.Table, error) {
	t, err := tabular.ReadCSV(filepath.Join(dir, name))
	if err != nil {
		reason := "unreadable"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "required file missing"
		}
		return nil, &soil.DataFormatError{Source: name, Reason: reason, Err: err}
	}
	return t, nil
}

func requireCols(t *tabular.Table, cols ...string) error {
	if miss := t.Missing(cols...); len(miss) > 0 {
		return &soil.DataFormatError{Source: t.Name, Reason: "missing columns " + strings.Join(miss, ", ")}
	}
	return nil
}

// ParseFields decodes fields.csv. Rows without a numeric field_id are skipped.
func ParseFields(t *tabular.Table, log *zap.SugaredLogger) ([]soil.FieldProfile, error) {
	if err := requireCols(t, "field_id"); err != nil {
		return nil, err
	}
	out := make([]soil.FieldProfile, 0, t.Len())
	for i := range t.Rows {
		id, ok := t.Int(i, "field_id")
		if !ok {
			log.Debugw("skipping field row without id", "row", i+2)
			continue
		}
		farm, _ := t.Int(i, "farm_id")
		out = append(out, soil.FieldProfile{
			FieldID:   id,
			FarmID:    farm,
			FieldName: t.String(i, "field_name"),
			SoilType:  t.String(i, "soil_type"),
			Area:      t.Float(i, "area"),
		})
	}
	return out, nil
}

// ParseYields decodes yield_history.csv.
func ParseYields(t *tabular.Table, log *zap.SugaredLogger) ([]soil.YieldRecord, error) {
	if err := requireCols(t, "field_id", "yield_value", "season", "year"); err != nil {
		return nil, err
	}
	out := make([]soil.YieldRecord, 0, t.Len())
	for i := range t.Rows {
		fid, ok1 := t.Int(i, "field_id")
		year, ok2 := t.Int(i, "year")
		val := t.Float(i, "yield_value")
		if !ok1 || !ok2 || !soil.Present(val) {
			log.Debugw("skipping incomplete yield row", "row", i+2)
			continue
		}
		yid, _ := t.Int(i, "yield_id")
		crop, _ := t.Int(i, "crop_id")
		out = append(out, soil.YieldRecord{
			YieldID:    yid,
			FieldID:    fid,
			CropID:     crop,
			Year:       int(year),
			Season:     soil.Season(t.String(i, "season")),
			YieldValue: val,
		})
	}
	return out, nil
}

// ParseCrops decodes crops.csv, preserving file order.
func ParseCrops(t *tabular.Table, log *zap.SugaredLogger) ([]soil.Crop, error) {
	if err := requireCols(t, "crop_id", "crop_name"); err != nil {
		return nil, err
	}
	out := make([]soil.Crop, 0, t.Len())
	for i := range t.Rows {
		id, ok := t.Int(i, "crop_id")
		if !ok {
			log.Debugw("skipping crop row without id", "row", i+2)
			continue
		}
		days, _ := t.Int(i, "growth_period_days")
		out = append(out, soil.Crop{CropID: id, CropName: t.String(i, "crop_name"), GrowthPeriodDays: int(days)})
	}
	return out, nil
}

// FirstCrop returns the first crop of the reference table.
func FirstCrop(crops []soil.Crop) (soil.Crop, error) {
	if len(crops) == 0 {
		return soil.Crop{}, &soil.DataFormatError{Source: CropsFile, Reason: "crop reference table is empty"}
	}
	return crops[0], nil
}

// String summarizes what was loaded.
func (in *Inputs) String() string {
	return fmt.Sprintf("%d fields, %d sensor rows, %d yields, %d crops", len(in.Fields), in.Sensor.Len(), len(in.Yields), len(in.Crops))
}
