package dataset

import (
	"math/rand"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
)

const syntheticDays = 100

var defaultFieldIDs = []int64{100001, 100002, 100003}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// GenerateSynthetic writes stand-in tables for the named missing files. When
// the sensor table is synthesized it is legacy shaped, so a matching weather
// table is written too unless one already exists.
func GenerateSynthetic(dir string, missing []string, opt Options) ([]string, error) {
	opt = opt.withDefaults()
	rng := rand.New(rand.NewSource(opt.Seed))
	var written []string
	write := func(name string, t *tabular.Table) error {
		if err := tabular.WriteCSV(filepath.Join(dir, name), t); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	}

	fieldIDs := defaultFieldIDs
	if slices.Contains(missing, FieldsFile) {
		t := tabular.New(FieldsFile,
			[]string{"field_id", "farm_id", "field_name", "soil_type", "area"},
			[][]string{
				{"100001", "200001", "North Block", "Clay", "5.5"},
				{"100002", "200001", "South Block", "Loam", "4.2"},
				{"100003", "200002", "East Block", "Sandy", "8.0"},
			})
		if err := write(FieldsFile, t); err != nil {
			return written, err
		}
	} else if t, err := tabular.ReadCSV(filepath.Join(dir, FieldsFile)); err == nil {
		if fs, err := ParseFields(t, opt.Log); err == nil && len(fs) > 0 {
			fieldIDs = fieldIDs[:0:0]
			for _, f := range fs {
				fieldIDs = append(fieldIDs, f.FieldID)
			}
		}
	}

	if slices.Contains(missing, SensorFile) {
		end := opt.Now()
		var readings, weather [][]string
		for _, fid := range fieldIDs {
			id := strconv.FormatInt(fid, 10)
			for d := syntheticDays - 1; d >= 0; d-- {
				ts := end.AddDate(0, 0, -d).Format("2006-01-02 15:04:05")
				readings = append(readings,
					[]string{id, ts, "moisture", ff(rng.NormFloat64()*5 + 25)},
					[]string{id, ts, "ph", ff(rng.NormFloat64()*0.5 + 6.5)},
					[]string{id, ts, "nitrogen", ff(rng.NormFloat64()*10 + 50)},
				)
				weather = append(weather, []string{id, ts,
					ff(rng.ExpFloat64() * 5), ff(rng.NormFloat64()*10 + 60), ff(rng.NormFloat64()*5 + 25)})
			}
		}
		if err := write(SensorFile, tabular.New(SensorFile,
			[]string{"field_id", "timestamp", "parameter", "value"}, readings)); err != nil {
			return written, err
		}
		if _, err := tabular.ReadCSV(filepath.Join(dir, WeatherFile)); err != nil {
			if err := write(WeatherFile, tabular.New(WeatherFile,
				[]string{"field_id", "timestamp", "rainfall", "humidity", "temperature"}, weather)); err != nil {
				return written, err
			}
		}
	}

	if slices.Contains(missing, CropsFile) {
		if err := write(CropsFile, tabular.New(CropsFile,
			[]string{"crop_id", "crop_name", "growth_period_days"},
			[][]string{{"300001", "Wheat", "120"}, {"300002", "Rice", "150"}})); err != nil {
			return written, err
		}
	}

	if slices.Contains(missing, YieldFile) {
		year := strconv.Itoa(opt.Now().Year() - 1)
		if err := write(YieldFile, tabular.New(YieldFile,
			[]string{"yield_id", "field_id", "crop_id", "yield_value", "season", "year"},
			[][]string{
				{"400001", "100001", "300001", "4500", "Kharif", year},
				{"400002", "100002", "300002", "5200", "Rabi", year},
				{"400003", "100003", "300001", "3100", "Kharif", year},
			})); err != nil {
			return written, err
		}
	}
	return written, nil
}
