package learn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScalerPopulationStdAndNaN(t *testing.T) {
	var s StandardScaler
	require.NoError(t, s.Fit([][]float64{{1, 5}, {3, 5}, {math.NaN(), 5}}))
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale, "population std of {1,3} is 1; constant column keeps scale 1")
	assert.Equal(t, []float64{1, 0}, s.TransformRow([]float64{3, 5}))
	assert.Equal(t, []float64{0, 0}, s.TransformRow([]float64{math.NaN(), 5}))

	assert.ErrorIs(t, s.Fit(nil), ErrEmpty)
}

func TestLabelEncoderSortedClasses(t *testing.T) {
	var e LabelEncoder
	e.Fit([]string{"Sandy", "Clay", "", "Loam", "Clay"})
	assert.Equal(t, []string{"Clay", "Loam", "Sandy"}, e.Classes)
	code, ok := e.Transform("Sandy")
	assert.True(t, ok)
	assert.Equal(t, 2, code)
	code, ok = e.Transform("Peat")
	assert.False(t, ok)
	assert.Equal(t, 0, code)
}

func linearData(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(3))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		a, b := rng.Float64()*10, rng.Float64()*5
		X[i] = []float64{a, b}
		y[i] = 3*a - 2*b + 7
	}
	return X, y
}

func TestRidgeRecoversLinearSignal(t *testing.T) {
	X, y := linearData(60)
	r := NewRidge(1e-6)
	require.NoError(t, r.Fit(X, y))
	assert.InDelta(t, 3*4-2*1+7, r.Predict([]float64{4, 1}), 1e-3)
	assert.InDelta(t, 1.0, R2Score(y, PredictAll(r, X)), 1e-6)
}

func TestKNNAveragesNeighbours(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}}
	y := []float64{1, 1, 1, 9, 9, 9}
	k := NewKNN(3)
	require.NoError(t, k.Fit(X, y))
	assert.Equal(t, 1.0, k.Predict([]float64{1.2}))
	assert.Equal(t, 9.0, k.Predict([]float64{10.5}))

	big := NewKNN(50)
	require.NoError(t, big.Fit(X, y))
	assert.Equal(t, 5.0, big.Predict([]float64{0}), "k larger than n uses every sample")
}

func TestR2ScoreEdgeCases(t *testing.T) {
	assert.Equal(t, 1.0, R2Score([]float64{2, 2}, []float64{2, 2}))
	assert.Equal(t, 0.0, R2Score([]float64{2, 2}, []float64{1, 3}))
	assert.InDelta(t, 0.0, R2Score([]float64{1, 2, 3}, []float64{2, 2, 2}), 1e-12)
	assert.InDelta(t, 1.0, RMSE([]float64{1, 3}, []float64{2, 2}), 1e-12)
}

func TestIsolationForestFlagsOutliers(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	X := make([][]float64, 0, 201)
	for i := 0; i < 200; i++ {
		X = append(X, []float64{rng.NormFloat64(), rng.NormFloat64()})
	}
	X = append(X, []float64{12, -12})

	f, err := FitIsolationForest(X, 0.05, 42)
	require.NoError(t, err)
	assert.Len(t, f.Trees, DefaultTrees)
	assert.Equal(t, 201, f.SampleSize)
	assert.Equal(t, Outlier, f.Predict([]float64{12, -12}))
	assert.Equal(t, Inlier, f.Predict([]float64{0, 0}))

	flagged := 0
	for _, x := range X {
		if f.Predict(x) == Outlier {
			flagged++
		}
	}
	assert.LessOrEqual(t, flagged, 11, "about contamination·n samples are flagged")

	again, err := FitIsolationForest(X, 0.05, 42)
	require.NoError(t, err)
	assert.Equal(t, f.Threshold, again.Threshold, "same seed, same forest")
}

func blobs() [][]float64 {
	rng := rand.New(rand.NewSource(9))
	var X [][]float64
	for _, c := range [][2]float64{{0, 0}, {10, 10}, {0, 10}} {
		for i := 0; i < 20; i++ {
			X = append(X, []float64{c[0] + rng.NormFloat64()*0.3, c[1] + rng.NormFloat64()*0.3})
		}
	}
	return X
}

func TestKMeansAndSilhouettePreferTrueK(t *testing.T) {
	X := blobs()
	var scores []float64
	for k := 2; k < 6; k++ {
		m, err := FitKMeans(X, k, 42)
		require.NoError(t, err)
		assert.Len(t, m.Centroids, k)
		scores = append(scores, Silhouette(X, m.Labels(X)))
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	assert.Equal(t, 3, best+2)
	assert.Greater(t, scores[1], 0.8)

	_, err := FitKMeans(X[:2], 3, 42)
	assert.Error(t, err)
}

func TestSilhouetteDegenerate(t *testing.T) {
	X := [][]float64{{0}, {1}, {5}}
	assert.Equal(t, -1.0, Silhouette(X, []int{0, 0, 0}))
	// the singleton contributes 0
	s := Silhouette(X, []int{0, 0, 1})
	a0, b0 := 1.0, 5.0
	a1, b1 := 1.0, 4.0
	assert.InDelta(t, ((b0-a0)/b0+(b1-a1)/b1)/3, s, 1e-12)
}
