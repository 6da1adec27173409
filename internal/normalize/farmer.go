package normalize

import (
	"strings"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
)

// FarmerIDBase offsets the ordinal of each distinct farmer name.
const FarmerIDBase = 100000

// farmerAliases maps short spreadsheet headers to canonical names. A
// canonical header wins when both are present.
var farmerAliases = map[measure][]string{
	mMoisture:    {"moisture"},
	mPH:          {"ph", "pH"},
	mNitrogen:    {"nitrogen", "N"},
	mTemperature: {"temperature", "Temp"},
	mRainfall:    {"rainfall", "Rain"},
	mHumidity:    {"humidity"},
}

func firstColumn(t *tabular.Table, names []string) string {
	for _, n := range names {
		if t.Has(n) {
			return n
		}
	}
	return ""
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SynthesizeMoisture estimates soil moisture from rainfall, temperature and
// optional organic matter. om is NaN when unknown.
func SynthesizeMoisture(rain, temp, om float64) float64 {
	m := clip(20+rain/50-temp/5, 5, 60)
	if soil.Present(om) {
		m = clip(m+om*5, 5, 60)
	}
	return m
}

func normalizeFarmer(t *tabular.Table, opt Options) (*Canonical, error) {
	cols := make(map[measure]string, numMeasures)
	for m, names := range farmerAliases {
		cols[m] = firstColumn(t, names)
	}
	deriveMoisture := cols[mMoisture] == ""
	if deriveMoisture && (cols[mRainfall] == "" || cols[mTemperature] == "") {
		return nil, &soil.DataFormatError{
			Source: t.Name,
			Reason: "farmer table has no moisture column and no Rain/Temp columns to derive it from",
		}
	}
	hasOM := t.Has("OM")
	deriveHumidity := cols[mHumidity] == ""

	c := &Canonical{}
	ids := map[string]int64{}
	perField := map[int64][]int{}
	var fieldOrder []int64
	for i := range t.Rows {
		name := strings.TrimSpace(t.String(i, FarmerColumn))
		if name == "" {
			c.Skipped++
			continue
		}
		id, ok := ids[name]
		if !ok {
			id = FarmerIDBase + int64(len(ids))
			ids[name] = id
			fieldOrder = append(fieldOrder, id)
		}
		val := func(m measure) float64 {
			if cols[m] == "" {
				return soil.NaN()
			}
			return t.Float(i, cols[m])
		}
		r := soil.Reading{
			FieldID:     id,
			PH:          val(mPH),
			Nitrogen:    val(mNitrogen),
			Temperature: val(mTemperature),
			Rainfall:    val(mRainfall),
			AltSoilType: t.String(i, "Soil_Type"),
		}
		if deriveMoisture {
			om := soil.NaN()
			if hasOM {
				om = t.Float(i, "OM")
			}
			r.Moisture = SynthesizeMoisture(r.Rainfall, r.Temperature, om)
		} else {
			r.Moisture = val(mMoisture)
		}
		if deriveHumidity {
			r.Humidity = 50 + opt.Rand.NormFloat64()*5
		} else {
			r.Humidity = val(mHumidity)
		}
		perField[id] = append(perField[id], len(c.Readings))
		c.Readings = append(c.Readings, r)
	}

	// Each field's rows become consecutive days ending today, in row order.
	today := soil.Day(opt.Now())
	for _, id := range fieldOrder {
		idx := perField[id]
		n := len(idx)
		for k, ri := range idx {
			c.Readings[ri].Date = today.AddDate(0, 0, k-(n-1))
		}
	}
	opt.Log.Debugw("farmer layout normalized", "farmers", len(ids), "rows", len(c.Readings),
		"derived_moisture", deriveMoisture, "derived_humidity", deriveHumidity)
	return c, nil
}
