package normalize

import (
	"strings"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
)

var (
	legacySensorColumns  = []string{"field_id", "timestamp", "parameter", "value"}
	legacyWeatherColumns = []string{"field_id", "timestamp", "rainfall", "humidity", "temperature"}
)

// legacyParameters maps parameter labels to measures; other labels are ignored.
var legacyParameters = map[string]measure{
	"moisture": mMoisture,
	"ph":       mPH,
	"nitrogen": mNitrogen,
}

func normalizeLegacy(sensor, weather *tabular.Table, opt Options) (*Canonical, error) {
	if miss := sensor.Missing(legacySensorColumns...); len(miss) > 0 {
		return nil, &soil.DataFormatError{
			Source: sensor.Name,
			Reason: "no recognized sensor layout; legacy layout is missing " + strings.Join(miss, ", "),
		}
	}
	if weather == nil {
		return nil, &soil.DataFormatError{
			Source: "weather_data.csv",
			Reason: "legacy sensor layout requires a weather table",
		}
	}
	if miss := weather.Missing(legacyWeatherColumns...); len(miss) > 0 {
		return nil, &soil.DataFormatError{
			Source: weather.Name,
			Reason: "weather table is missing " + strings.Join(miss, ", "),
		}
	}

	c := &Canonical{}
	soilDays := newDailyMeans()
	for i := range sensor.Rows {
		id, ok := sensor.Int(i, "field_id")
		ts, tok := sensor.Time(i, "timestamp")
		if !ok || !tok {
			c.Skipped++
			continue
		}
		m, known := legacyParameters[strings.ToLower(sensor.String(i, "parameter"))]
		if !known {
			soilDays.touch(id, ts)
			continue
		}
		soilDays.add(id, ts, m, sensor.Float(i, "value"))
	}

	weatherDays := newDailyMeans()
	for i := range weather.Rows {
		id, ok := weather.Int(i, "field_id")
		ts, tok := weather.Time(i, "timestamp")
		if !ok || !tok {
			c.Skipped++
			continue
		}
		weatherDays.add(id, ts, mRainfall, weather.Float(i, "rainfall"))
		weatherDays.add(id, ts, mHumidity, weather.Float(i, "humidity"))
		weatherDays.add(id, ts, mTemperature, weather.Float(i, "temperature"))
	}

	// Inner join on (field, day): sensor days without weather are dropped.
	for _, k := range soilDays.order {
		w, ok := weatherDays.accs[k]
		if !ok {
			c.JoinDropped++
			continue
		}
		s := soilDays.accs[k]
		r := s.reading(k)
		r.Temperature = w.mean(mTemperature)
		r.Rainfall = w.mean(mRainfall)
		r.Humidity = w.mean(mHumidity)
		c.Readings = append(c.Readings, r)
	}
	if c.JoinDropped > 0 {
		opt.Log.Warnw("sensor days dropped by weather join", "days", c.JoinDropped)
	}
	return c, nil
}
