package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/merge"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(field int64, start time.Time, moisture ...float64) []merge.Row {
	out := make([]merge.Row, len(moisture))
	for i, m := range moisture {
		out[i] = merge.Row{Reading: soil.Reading{
			FieldID:  field,
			Date:     start.AddDate(0, 0, i),
			Moisture: m,
			PH:       6.5,
			Nitrogen: 50,
		}, SoilType: "Clay"}
	}
	return out
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFirstRowUsesWindowOfOne(t *testing.T) {
	s := Build(series(1, jan1, 30, 10))
	rows := s.Rows()
	require.Len(t, rows, 2)
	first := rows[0]
	assert.Equal(t, 30.0, first.RollMeanMoisture)
	assert.Equal(t, 0.0, first.RollStdMoisture)
	assert.Equal(t, 1.0, first.Stability)
	assert.Equal(t, 0.0, first.TrendSlopeMoisture)

	second := rows[1]
	assert.Equal(t, 20.0, second.RollMeanMoisture)
	assert.InDelta(t, math.Sqrt(200), second.RollStdMoisture, 1e-9)
	assert.InDelta(t, 1/(math.Sqrt(200)/3+1), second.Stability, 1e-9)
}

func TestStabilityBounds(t *testing.T) {
	assert.Equal(t, 1.0, StabilityScore(0, 0, 0))
	for _, v := range []float64{0.001, 1, 1e6} {
		got := StabilityScore(v, v, v)
		assert.Greater(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestSortsAndDoesNotLeakAcrossFields(t *testing.T) {
	a := series(2, jan1, 10, 10, 10)
	b := series(1, jan1, 50, 50, 50)
	// shuffle input order
	in := []merge.Row{a[2], b[1], a[0], b[0], a[1], b[2]}
	s := Build(in)
	assert.Equal(t, []int64{1, 2}, s.Fields())

	rows := s.Rows()
	for i := 1; i < len(rows); i++ {
		if rows[i].FieldID == rows[i-1].FieldID {
			assert.True(t, rows[i].Date.After(rows[i-1].Date), "dates must ascend within a field")
		}
	}
	f2, err := s.Recent(2, 60)
	require.NoError(t, err)
	require.Len(t, f2, 3)
	assert.Equal(t, 10.0, f2[0].RollMeanMoisture, "field 2 must not see field 1 values")
	assert.Equal(t, 0.0, f2[0].RollStdMoisture)
}

func TestTrendSlopeAndWindows(t *testing.T) {
	m := make([]float64, 20)
	for i := range m {
		m[i] = float64(i)
	}
	rows := Build(series(1, jan1, m...)).Rows()
	for i := 0; i < TrendWindow; i++ {
		assert.Equal(t, 0.0, rows[i].TrendSlopeMoisture)
	}
	assert.InDelta(t, 1.0, rows[7].TrendSlopeMoisture, 1e-12)
	// trailing 7 of 13..19
	assert.InDelta(t, 16.0, rows[19].RollMeanMoisture, 1e-12)
	// sample std of 6..19
	assert.InDelta(t, math.Sqrt(17.5), rows[19].RollStdMoisture, 1e-9)
}

func TestMissingValuesAreSkipped(t *testing.T) {
	rows := Build(series(1, jan1, 10, math.NaN(), 20)).Rows()
	assert.Equal(t, 10.0, rows[1].RollMeanMoisture)
	assert.Equal(t, 0.0, rows[1].RollStdMoisture)
	assert.Equal(t, 15.0, rows[2].RollMeanMoisture)
}

func TestCalendarAndSeason(t *testing.T) {
	cases := map[time.Month]soil.Season{
		time.January: soil.Rabi, time.March: soil.Rabi, time.April: soil.Zaid, time.May: soil.Zaid,
		time.June: soil.Kharif, time.September: soil.Kharif, time.October: soil.Rabi, time.December: soil.Rabi,
	}
	for m, want := range cases {
		d := time.Date(2023, m, 15, 0, 0, 0, 0, time.UTC)
		r, err := Build(series(9, d, 20)).Latest(9)
		require.NoError(t, err)
		assert.Equal(t, want, r.Season, "month %v", m)
		assert.Equal(t, int(m), r.Month)
		assert.Equal(t, 2023, r.Year)
		assert.Equal(t, d.YearDay(), r.DayOfYear)
	}
}

func TestLatestAndRecentErrors(t *testing.T) {
	s := Build(series(1, jan1, 1, 2, 3))
	r, err := s.Latest(1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Moisture)

	w, err := s.Recent(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, []float64{w[0].Moisture, w[1].Moisture})

	_, err = s.Latest(42)
	var fnf *soil.FieldNotFoundError
	assert.True(t, errors.As(err, &fnf))
	_, err = s.Recent(42, 7)
	assert.True(t, errors.As(err, &fnf))
}
