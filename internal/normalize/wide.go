package normalize

import (
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
)

// wideColumns lists the accepted header for each measure, renamed
// variants first.
var wideColumns = map[measure][]string{
	mMoisture:    {"moisture_percent", "moisture"},
	mPH:          {"ph"},
	mNitrogen:    {"nitrogen_ppm", "nitrogen"},
	mTemperature: {"temperature_c", "temperature"},
	mRainfall:    {"rainfall_mm", "rainfall"},
	mHumidity:    {"humidity_percent", "humidity"},
}

func normalizeWide(t *tabular.Table, opt Options) (*Canonical, error) {
	tsCol := firstColumn(t, []string{"timestamp", "date"})
	if !t.Has("field_id") || tsCol == "" {
		return nil, &soil.DataFormatError{
			Source: t.Name,
			Reason: "wide layout requires field_id and timestamp columns",
		}
	}
	cols := make(map[measure]string, numMeasures)
	for m, names := range wideColumns {
		cols[m] = firstColumn(t, names)
	}

	c := &Canonical{}
	agg := newDailyMeans()
	for i := range t.Rows {
		id, ok := t.Int(i, "field_id")
		ts, tok := t.Time(i, tsCol)
		if !ok || !tok {
			c.Skipped++
			continue
		}
		agg.touch(id, ts)
		for m := measure(0); m < numMeasures; m++ {
			if cols[m] != "" {
				agg.add(id, ts, m, t.Float(i, cols[m]))
			}
		}
	}
	for _, k := range agg.order {
		c.Readings = append(c.Readings, agg.accs[k].reading(k))
	}
	return c, nil
}
