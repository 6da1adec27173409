package train

import (
	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/learn"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
)

// RawFeatures are the instantaneous readings scored by the anomaly and
// cluster models.
var RawFeatures = []string{"moisture", "ph", "nitrogen", "temperature", "rainfall"}

// RawVector lays a reading out as RawFeatures.
func RawVector(r soil.Reading) []float64 {
	return []float64{r.Moisture, r.PH, r.Nitrogen, r.Temperature, r.Rainfall}
}

// AnomalyModel is the persisted anomaly artifact.
type AnomalyModel struct {
	Scaler learn.StandardScaler   `msgpack:"scaler"`
	Forest *learn.IsolationForest `msgpack:"forest"`
	Fill   []float64              `msgpack:"fill"`
}

// Predict returns learn.Outlier or learn.Inlier for a RawVector.
func (m *AnomalyModel) Predict(x []float64) int {
	x = append([]float64(nil), x...)
	fillNaN([][]float64{x}, m.Fill)
	return m.Forest.Predict(m.Scaler.TransformRow(x))
}

// AnomalyDiagnostics summarizes an anomaly training run.
type AnomalyDiagnostics struct {
	Samples       int     `json:"samples"`
	Flagged       int     `json:"flagged"`
	FlaggedPct    float64 `json:"flagged_pct"`
	Contamination float64 `json:"contamination"`
	Threshold     float64 `json:"threshold"`
}

func rawMatrix(set *features.Set) [][]float64 {
	rows := set.Rows()
	X := make([][]float64, len(rows))
	for i, r := range rows {
		X[i] = RawVector(r.Reading)
	}
	return X
}

// Anomaly fits a scaler and isolation forest on the raw readings.
func (t *Trainer) Anomaly(set *features.Set) (*artifact.Handle, *AnomalyDiagnostics, error) {
	X := rawMatrix(set)
	fill := columnMeans(X)
	fillNaN(X, fill)

	m := AnomalyModel{Fill: fill}
	if err := m.Scaler.Fit(X); err != nil {
		return nil, nil, err
	}
	Z := m.Scaler.Transform(X)
	contamination := t.Contamination
	if contamination <= 0 {
		contamination = 0.05
	}
	forest, err := learn.FitIsolationForest(Z, contamination, t.Seed)
	if err != nil {
		return nil, nil, err
	}
	m.Forest = forest

	diag := &AnomalyDiagnostics{Samples: len(Z), Contamination: contamination, Threshold: forest.Threshold}
	for _, z := range Z {
		if forest.Predict(z) == learn.Outlier {
			diag.Flagged++
		}
	}
	diag.FlaggedPct = 100 * float64(diag.Flagged) / float64(len(Z))
	t.log().Infow("isolation forest fitted", "flagged_pct", diag.FlaggedPct, "samples", diag.Samples)

	h, err := artifact.Save(t.ModelDir, artifact.KindAnomaly, &m)
	if err != nil {
		return nil, nil, err
	}
	return h, diag, nil
}
