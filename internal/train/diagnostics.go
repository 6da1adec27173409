package train

import (
	"math"

	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"gonum.org/v1/gonum/stat"
)

// CorrelationColumns are the readings compared in the correlation matrix.
var CorrelationColumns = []string{"moisture", "ph", "nitrogen", "temperature", "rainfall", "humidity"}

// Diagnostics replaces the training plots with machine-readable numbers.
type Diagnostics struct {
	Yield       *YieldDiagnostics   `json:"yield"`
	Anomaly     *AnomalyDiagnostics `json:"anomaly"`
	Clusters    *ClusterDiagnostics `json:"clusters"`
	Correlation *CorrelationMatrix  `json:"correlation"`
}

// CorrelationMatrix holds pairwise Pearson coefficients. Undefined entries
// (too few paired values or a constant column) are null.
type CorrelationMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// Correlations computes the matrix over rows where both readings are present.
func Correlations(set *features.Set) *CorrelationMatrix {
	rows := set.Rows()
	cols := make([][]float64, len(CorrelationColumns))
	for _, r := range rows {
		vals := []float64{r.Moisture, r.PH, r.Nitrogen, r.Temperature, r.Rainfall, r.Humidity}
		for j, v := range vals {
			cols[j] = append(cols[j], v)
		}
	}
	m := &CorrelationMatrix{Columns: CorrelationColumns, Values: make([][]*float64, len(cols))}
	for a := range cols {
		m.Values[a] = make([]*float64, len(cols))
		for b := range cols {
			var xs, ys []float64
			for i := range cols[a] {
				if soil.Present(cols[a][i]) && soil.Present(cols[b][i]) {
					xs = append(xs, cols[a][i])
					ys = append(ys, cols[b][i])
				}
			}
			if len(xs) < 2 {
				continue
			}
			c := stat.Correlation(xs, ys, nil)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				continue
			}
			m.Values[a][b] = &c
		}
	}
	return m
}
