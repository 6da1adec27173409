// Package train fits the yield, anomaly and soil-cluster models on an
// engineered feature set and persists each one as an artifact.
package train

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"go.uber.org/zap"
)

// DiagnosticsFile is written into the plots directory after a full run.
const DiagnosticsFile = "diagnostics.json"

// Trainer holds the knobs shared by every model.
type Trainer struct {
	ModelDir      string
	PlotsDir      string
	Seed          int64
	Contamination float64
	Log           *zap.SugaredLogger
}

func (t *Trainer) log() *zap.SugaredLogger {
	if t.Log == nil {
		return zap.NewNop().Sugar()
	}
	return t.Log
}

// Report collects the handles and diagnostics of a full training run. Cluster
// is nil when clustering was skipped for lack of samples.
type Report struct {
	Yield       *artifact.Handle `json:"yield"`
	Anomaly     *artifact.Handle `json:"anomaly"`
	Cluster     *artifact.Handle `json:"cluster,omitempty"`
	Diagnostics *Diagnostics     `json:"diagnostics"`
}

// All trains the three models in order and writes diagnostics.json.
func (t *Trainer) All(set *features.Set, yields []soil.YieldRecord) (*Report, error) {
	if set.Len() == 0 {
		return nil, &soil.DataFormatError{Source: "features", Reason: "no rows to train on"}
	}
	diag := &Diagnostics{}
	rep := &Report{Diagnostics: diag}
	var err error
	if rep.Yield, diag.Yield, err = t.Yield(set, yields); err != nil {
		return nil, fmt.Errorf("train yield model: %w", err)
	}
	if rep.Anomaly, diag.Anomaly, err = t.Anomaly(set); err != nil {
		return nil, fmt.Errorf("train anomaly model: %w", err)
	}
	if rep.Cluster, diag.Clusters, err = t.Clusters(set); err != nil {
		return nil, fmt.Errorf("train cluster model: %w", err)
	}
	diag.Correlation = Correlations(set)

	if t.PlotsDir != "" {
		if err := utils.EnsureDirs(t.PlotsDir); err != nil {
			return nil, err
		}
		b, err := utils.PrettyJSON(diag)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(t.PlotsDir, DiagnosticsFile)
		if err := utils.SafeWriteFile(p, b); err != nil {
			return nil, fmt.Errorf("write diagnostics: %w", err)
		}
		t.log().Infow("diagnostics written", "path", p)
	}
	return rep, nil
}

// columnMeans returns the NaN-skipping mean of each column.
func columnMeans(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	means := make([]float64, len(X[0]))
	for j := range means {
		var sum float64
		var n int
		for _, row := range X {
			if soil.Present(row[j]) {
				sum += row[j]
				n++
			}
		}
		if n > 0 {
			means[j] = sum / float64(n)
		}
	}
	return means
}

// fillNaN replaces absent cells with the column mean, in place.
func fillNaN(X [][]float64, means []float64) {
	for _, row := range X {
		for j, v := range row {
			if !soil.Present(v) {
				row[j] = means[j]
			}
		}
	}
}
