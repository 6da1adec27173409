// Package learn holds the statistical learners the trainers fit. Every model
// is a plain value with exported fields so it can be persisted as an
// artifact payload and scored later without the training code.
package learn

import (
	"errors"
	"math"
	"sort"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a learner is fit on no samples.
var ErrEmpty = errors.New("learn: no samples")

// StandardScaler centers each column on its mean and divides by its
// population standard deviation. Absent values map to the column mean.
type StandardScaler struct {
	Mean  []float64 `msgpack:"mean"`
	Scale []float64 `msgpack:"scale"`
}

// Fit learns per-column mean and scale, ignoring NaN cells.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return ErrEmpty
	}
	p := len(X[0])
	s.Mean = make([]float64, p)
	s.Scale = make([]float64, p)
	col := make([]float64, 0, len(X))
	for j := 0; j < p; j++ {
		col = col[:0]
		for _, row := range X {
			if soil.Present(row[j]) {
				col = append(col, row[j])
			}
		}
		s.Mean[j], s.Scale[j] = 0, 1
		if len(col) == 0 {
			continue
		}
		s.Mean[j] = stat.Mean(col, nil)
		if sd := math.Sqrt(stat.PopVariance(col, nil)); sd > 0 {
			s.Scale[j] = sd
		}
	}
	return nil
}

// TransformRow scales one sample into a new slice.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if !soil.Present(v) {
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// Transform scales every sample.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// LabelEncoder maps categories to codes by sorted position.
type LabelEncoder struct {
	Classes []string `msgpack:"classes"`
}

// Fit collects the distinct non-empty values.
func (e *LabelEncoder) Fit(values []string) {
	seen := map[string]bool{}
	e.Classes = e.Classes[:0]
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			e.Classes = append(e.Classes, v)
		}
	}
	sort.Strings(e.Classes)
}

// Transform returns the code for v and whether v was seen during Fit.
func (e *LabelEncoder) Transform(v string) (int, bool) {
	i := sort.SearchStrings(e.Classes, v)
	if i < len(e.Classes) && e.Classes[i] == v {
		return i, true
	}
	return 0, false
}
