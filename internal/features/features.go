// Package features derives calendar and trailing-window statistics per field.
package features

import (
	"math"
	"sort"

	"github.com/KaramelBytes/soilfusion-cli/internal/merge"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"gonum.org/v1/gonum/stat"
)

// Window sizes, in rows.
const (
	MeanWindow  = 7
	StdWindow   = 14
	TrendWindow = 7
)

// Row is one engineered daily row.
type Row struct {
	merge.Row

	DayOfYear int
	Month     int
	Year      int
	Season    soil.Season

	RollMeanMoisture float64
	RollMeanPH       float64
	RollMeanNitrogen float64
	RollStdMoisture  float64
	RollStdPH        float64
	RollStdNitrogen  float64

	TrendSlopeMoisture float64
	Stability          float64
}

// Set is an immutable, (field, date)-ordered collection of rows.
type Set struct {
	rows   []Row
	fields []int64
	span   map[int64][2]int
}

// Build sorts rows by (field_id, date) and computes every derived column
// within each field's own sub-sequence.
func Build(in []merge.Row) *Set {
	rows := make([]Row, len(in))
	for i, r := range in {
		rows[i] = Row{Row: r}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FieldID != rows[j].FieldID {
			return rows[i].FieldID < rows[j].FieldID
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	s := &Set{rows: rows, span: map[int64][2]int{}}
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].FieldID == rows[start].FieldID {
			end++
		}
		computeField(rows[start:end])
		s.fields = append(s.fields, rows[start].FieldID)
		s.span[rows[start].FieldID] = [2]int{start, end}
		start = end
	}
	return s
}

func computeField(rows []Row) {
	moist := make([]float64, len(rows))
	ph := make([]float64, len(rows))
	nitro := make([]float64, len(rows))
	for i, r := range rows {
		moist[i], ph[i], nitro[i] = r.Moisture, r.PH, r.Nitrogen
	}
	for i := range rows {
		r := &rows[i]
		r.DayOfYear = r.Date.YearDay()
		r.Month = int(r.Date.Month())
		r.Year = r.Date.Year()
		r.Season = soil.SeasonOf(r.Date.Month())

		r.RollMeanMoisture = trailingMean(moist, i, MeanWindow)
		r.RollMeanPH = trailingMean(ph, i, MeanWindow)
		r.RollMeanNitrogen = trailingMean(nitro, i, MeanWindow)
		r.RollStdMoisture = zeroNaN(trailingStd(moist, i, StdWindow))
		r.RollStdPH = zeroNaN(trailingStd(ph, i, StdWindow))
		r.RollStdNitrogen = zeroNaN(trailingStd(nitro, i, StdWindow))

		r.TrendSlopeMoisture = 0
		if i >= TrendWindow {
			r.TrendSlopeMoisture = zeroNaN((moist[i] - moist[i-TrendWindow]) / TrendWindow)
		}
		r.Stability = StabilityScore(r.RollStdMoisture, r.RollStdPH, r.RollStdNitrogen)
	}
}

// StabilityScore is 1/(mean std + 1); it is 1 when every std is 0.
func StabilityScore(stds ...float64) float64 {
	return 1 / (stat.Mean(stds, nil) + 1)
}

// window returns the present values of x[i-n+1 .. i].
func window(x []float64, i, n int) []float64 {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	out := make([]float64, 0, i-lo+1)
	for _, v := range x[lo : i+1] {
		if soil.Present(v) {
			out = append(out, v)
		}
	}
	return out
}

func trailingMean(x []float64, i, n int) float64 {
	w := window(x, i, n)
	if len(w) == 0 {
		return math.NaN()
	}
	return stat.Mean(w, nil)
}

// trailingStd is the sample standard deviation; a single value yields NaN.
func trailingStd(x []float64, i, n int) float64 {
	w := window(x, i, n)
	if len(w) < 2 {
		return math.NaN()
	}
	return stat.StdDev(w, nil)
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Len returns the number of rows.
func (s *Set) Len() int { return len(s.rows) }

// Rows returns a copy of every row in (field, date) order.
func (s *Set) Rows() []Row { return append([]Row(nil), s.rows...) }

// Fields returns the field ids in ascending order.
func (s *Set) Fields() []int64 { return append([]int64(nil), s.fields...) }

// Latest returns the most recent row for a field.
func (s *Set) Latest(fieldID int64) (Row, error) {
	sp, ok := s.span[fieldID]
	if !ok {
		return Row{}, &soil.FieldNotFoundError{FieldID: fieldID}
	}
	return s.rows[sp[1]-1], nil
}

// Recent returns up to the last n rows for a field, oldest first.
func (s *Set) Recent(fieldID int64, n int) ([]Row, error) {
	sp, ok := s.span[fieldID]
	if !ok {
		return nil, &soil.FieldNotFoundError{FieldID: fieldID}
	}
	lo := sp[1] - n
	if lo < sp[0] {
		lo = sp[0]
	}
	return append([]Row(nil), s.rows[lo:sp[1]]...), nil
}
