package train

import (
	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/learn"
)

// Candidate cluster counts are [MinK, MaxK).
const (
	MinK = 2
	MaxK = 6
)

// ClusterModel is the persisted soil-cluster artifact.
type ClusterModel struct {
	Scaler learn.StandardScaler `msgpack:"scaler"`
	KMeans *learn.KMeans        `msgpack:"kmeans"`
	Fill   []float64            `msgpack:"fill"`
}

// Predict assigns a RawVector to a cluster.
func (m *ClusterModel) Predict(x []float64) int {
	x = append([]float64(nil), x...)
	fillNaN([][]float64{x}, m.Fill)
	return m.KMeans.Predict(m.Scaler.TransformRow(x))
}

// KScore is one evaluated cluster count.
type KScore struct {
	K          int     `json:"k"`
	Inertia    float64 `json:"inertia"`
	Silhouette float64 `json:"silhouette"`
}

// ClusterDiagnostics summarizes a clustering run.
type ClusterDiagnostics struct {
	Skipped    bool     `json:"skipped"`
	Candidates []KScore `json:"candidates"`
	BestK      int      `json:"best_k"`
	BestScore  float64  `json:"best_silhouette"`
}

// Clusters evaluates each candidate k by silhouette, refits at the best one
// and persists it. When the sample count does not exceed a candidate k the
// run is abandoned and no artifact is written.
func (t *Trainer) Clusters(set *features.Set) (*artifact.Handle, *ClusterDiagnostics, error) {
	log := t.log()
	X := rawMatrix(set)
	fill := columnMeans(X)
	fillNaN(X, fill)

	m := ClusterModel{Fill: fill}
	if err := m.Scaler.Fit(X); err != nil {
		return nil, nil, err
	}
	Z := m.Scaler.Transform(X)

	diag := &ClusterDiagnostics{BestK: 3, BestScore: -1}
	for k := MinK; k < MaxK; k++ {
		if len(Z) <= k {
			log.Warnw("not enough samples for clustering", "samples", len(Z), "k", k)
			return nil, &ClusterDiagnostics{Skipped: true}, nil
		}
		km, err := learn.FitKMeans(Z, k, t.Seed)
		if err != nil {
			return nil, nil, err
		}
		score := learn.Silhouette(Z, km.Labels(Z))
		diag.Candidates = append(diag.Candidates, KScore{K: k, Inertia: km.Inertia, Silhouette: score})
		if score > diag.BestScore {
			diag.BestK, diag.BestScore = k, score
		}
	}
	km, err := learn.FitKMeans(Z, diag.BestK, t.Seed)
	if err != nil {
		return nil, nil, err
	}
	m.KMeans = km
	log.Infow("k-means selected", "k", diag.BestK, "silhouette", diag.BestScore, "inertia", km.Inertia)

	h, err := artifact.Save(t.ModelDir, artifact.KindCluster, &m)
	if err != nil {
		return nil, nil, err
	}
	return h, diag, nil
}
