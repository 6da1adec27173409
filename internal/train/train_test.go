package train

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/learn"
	"github.com/KaramelBytes/soilfusion-cli/internal/merge"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var soils = []string{"Clay", "Loam", "Sandy"}

// makeSet builds days of readings per field starting in Kharif 2023.
func makeSet(fields, days int) *features.Set {
	rng := rand.New(rand.NewSource(11))
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	var rows []merge.Row
	for f := 0; f < fields; f++ {
		for d := 0; d < days; d++ {
			rows = append(rows, merge.Row{
				Reading: soil.Reading{
					FieldID:     int64(100001 + f),
					Date:        start.AddDate(0, 0, d),
					Moisture:    25 + rng.NormFloat64()*5,
					PH:          6.5 + rng.NormFloat64()*0.5,
					Nitrogen:    50 + rng.NormFloat64()*10,
					Temperature: 25 + rng.NormFloat64()*5,
					Rainfall:    rng.ExpFloat64() * 5,
					Humidity:    60 + rng.NormFloat64()*10,
				},
				SoilType: soils[f%len(soils)],
			})
		}
	}
	return features.Build(rows)
}

func trainer(t *testing.T) *Trainer {
	dir := t.TempDir()
	return &Trainer{
		ModelDir:      filepath.Join(dir, "models"),
		PlotsDir:      filepath.Join(dir, "plots"),
		Seed:          42,
		Contamination: 0.05,
	}
}

func TestSeasonalAggregateSumsRainAndSkipsUnknownSoil(t *testing.T) {
	day := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := []merge.Row{
		{Reading: soil.Reading{FieldID: 1, Date: day, Moisture: 20, Rainfall: 2}, SoilType: "Clay"},
		{Reading: soil.Reading{FieldID: 1, Date: day.AddDate(0, 0, 1), Moisture: 30, Rainfall: math.NaN()}, SoilType: "Clay"},
		{Reading: soil.Reading{FieldID: 1, Date: day.AddDate(0, 0, 2), Moisture: 40, Rainfall: 5}, SoilType: "Clay"},
		{Reading: soil.Reading{FieldID: 2, Date: day, Moisture: 10, Rainfall: 1}},
	}
	got := SeasonalAggregate(features.Build(rows).Rows())
	require.Len(t, got, 1)
	assert.Equal(t, soil.Kharif, got[0].Season)
	assert.Equal(t, 2023, got[0].Year)
	assert.Equal(t, 30.0, got[0].AvgMoisture)
	assert.Equal(t, 7.0, got[0].Rainfall)
}

func TestFilterIQRDropsOutliers(t *testing.T) {
	var rows []TrainingRow
	for _, y := range []float64{100, 102, 98, 101, 99, 100, 5000} {
		rows = append(rows, TrainingRow{Yield: y})
	}
	kept := FilterIQR(rows)
	assert.Len(t, kept, 6)
	for _, r := range kept {
		assert.NotEqual(t, 5000.0, r.Yield)
	}
}

func TestChronoSplit(t *testing.T) {
	for _, c := range []struct{ n, train, test int }{{1, 1, 1}, {2, 1, 1}, {3, 2, 1}, {8, 6, 2}, {10, 8, 2}} {
		tr, te := chronoSplit(c.n)
		assert.Equal(t, [2]int{c.train, c.test}, [2]int{tr, te}, "n=%d", c.n)
	}
}

func TestYieldFallsBackToSyntheticLabels(t *testing.T) {
	tr := trainer(t)
	set := makeSet(3, 200)
	h, diag, err := tr.Yield(set, nil)
	require.NoError(t, err)
	assert.True(t, diag.Synthetic)
	assert.Len(t, diag.Candidates, 2)
	assert.FileExists(t, h.Path)

	var m YieldModel
	_, err = artifact.Load(tr.ModelDir, artifact.KindYield, &m)
	require.NoError(t, err)
	assert.True(t, m.Synthetic)
	assert.Equal(t, soils, m.Encoder.Classes)
	assert.Equal(t, YieldFeatures, m.Features)

	seasonal := SeasonalAggregate(set.Rows())
	vec := TrainingRow{SeasonalRow: seasonal[0], CropID: SyntheticCropID}.Vector(0)
	pred, err := m.Predict(vec)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred))
	assert.InDelta(t, 3000, pred, 1500, "synthetic labels centre near 2000+40·25")

	_, err = m.Predict(vec[:5])
	assert.Error(t, err)
}

func TestYieldUsesMatchedHistory(t *testing.T) {
	tr := trainer(t)
	set := makeSet(3, 200)
	var yields []soil.YieldRecord
	for f := int64(100001); f <= 100003; f++ {
		yields = append(yields,
			soil.YieldRecord{FieldID: f, CropID: 300002, Year: 2023, Season: soil.Kharif, YieldValue: 4000 + float64(f%10)*100},
			soil.YieldRecord{FieldID: f, CropID: 300002, Year: 2023, Season: soil.Rabi, YieldValue: 3800 + float64(f%10)*100},
		)
	}
	_, diag, err := tr.Yield(set, yields)
	require.NoError(t, err)
	assert.False(t, diag.Synthetic)
	assert.Equal(t, diag.TrainSize+diag.TestSize, diag.Samples)
	assert.Contains(t, []string{AlgoRidge, AlgoKNN}, diag.Selected)
}

func TestExpandSoilUnknownCodeIsAllZero(t *testing.T) {
	vec := make([]float64, len(YieldFeatures))
	vec[SoilTypeIndex] = 1
	assert.Equal(t, []float64{0, 1, 0}, expandSoil(vec, 3)[SoilTypeIndex:])
	vec[SoilTypeIndex] = 7
	assert.Equal(t, []float64{0, 0, 0}, expandSoil(vec, 3)[SoilTypeIndex:])
}

func TestClustersAbortWithTooFewSamples(t *testing.T) {
	tr := trainer(t)
	h, diag, err := tr.Clusters(makeSet(1, 2))
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.True(t, diag.Skipped)
	_, err = os.Stat(filepath.Join(tr.ModelDir, artifact.ClusterFile))
	assert.True(t, os.IsNotExist(err))
}

func TestAllWritesArtifactsAndDiagnostics(t *testing.T) {
	tr := trainer(t)
	set := makeSet(3, 120)
	rep, err := tr.All(set, nil)
	require.NoError(t, err)
	require.NotNil(t, rep.Cluster)
	for _, f := range []string{artifact.YieldFile, artifact.AnomalyFile, artifact.ClusterFile} {
		assert.FileExists(t, filepath.Join(tr.ModelDir, f))
	}
	assert.FileExists(t, filepath.Join(tr.PlotsDir, DiagnosticsFile))

	d := rep.Diagnostics
	assert.Len(t, d.Clusters.Candidates, MaxK-MinK)
	assert.GreaterOrEqual(t, d.Clusters.BestK, MinK)
	assert.Less(t, d.Clusters.BestK, MaxK)
	assert.InDelta(t, 5, d.Anomaly.FlaggedPct, 5)
	require.NotNil(t, d.Correlation.Values[0][0])
	assert.InDelta(t, 1, *d.Correlation.Values[0][0], 1e-9)

	var am AnomalyModel
	_, err = artifact.Load(tr.ModelDir, artifact.KindAnomaly, &am)
	require.NoError(t, err)
	assert.Equal(t, learn.Outlier, am.Predict([]float64{500, 14, 900, 80, 400}))

	var cm ClusterModel
	_, err = artifact.Load(tr.ModelDir, artifact.KindCluster, &cm)
	require.NoError(t, err)
	c := cm.Predict([]float64{25, 6.5, math.NaN(), 25, 5})
	assert.GreaterOrEqual(t, c, 0)
	assert.Less(t, c, d.Clusters.BestK)
}
