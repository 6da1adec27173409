package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/dataset"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	root := t.TempDir()
	return &Pipeline{
		DataDir:       filepath.Join(root, "data"),
		ModelDir:      filepath.Join(root, "models"),
		PlotsDir:      filepath.Join(root, "plots"),
		Seed:          42,
		Contamination: 0.05,
		Now:           func() time.Time { return fixedNow },
	}
}

func TestPrepareSynthesizesMissingInputs(t *testing.T) {
	p := newPipeline(t)
	snap, err := p.Prepare()
	require.NoError(t, err)
	assert.NotEmpty(t, snap.RunID)
	assert.ElementsMatch(t,
		[]string{dataset.FieldsFile, dataset.SensorFile, dataset.WeatherFile, dataset.YieldFile, dataset.CropsFile},
		snap.Inputs.Synthesized)
	assert.Equal(t, []int64{100001, 100002, 100003}, snap.Features.Fields())
	assert.Equal(t, 300, snap.Features.Len())
}

func TestTrainAndAnalyze(t *testing.T) {
	p := newPipeline(t)
	snap, err := p.Prepare()
	require.NoError(t, err)
	rep, err := p.Train(snap)
	require.NoError(t, err)
	require.NotNil(t, rep.Yield)
	require.NotNil(t, rep.Anomaly)
	assert.True(t, p.ModelsReady())
	assert.FileExists(t, filepath.Join(p.PlotsDir, "diagnostics.json"))

	res, err := p.Analyze(100001, narrative.English)
	require.NoError(t, err)
	assert.Equal(t, int64(100001), res.FieldID)
	assert.False(t, math.IsNaN(res.YieldPrediction))
	require.NotNil(t, res.SoilCluster)
	assert.Len(t, res.HistoricalData, HistoryDays)
	assert.Equal(t, "2024-03-10", res.HistoricalData[HistoryDays-1].Date)
	for _, r := range res.HistoricalData {
		require.NotNil(t, r.Moisture)
		assert.InDelta(t, math.Round(*r.Moisture*10)/10, *r.Moisture, 1e-9)
	}
	assert.Contains(t, res.Summary, "Soil health risk:")
	assert.Equal(t, narrative.RecoveryTime(res.Recommendation.Risk, narrative.English), res.RecoveryTime)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	for _, k := range []string{"field_id", "yield_prediction", "anomaly_detected", "soil_cluster",
		"recommendation", "recovery_time", "summary", "historical_data"} {
		assert.Contains(t, generic, k)
	}
}

func TestAnalyzeWithoutClusterModel(t *testing.T) {
	p := newPipeline(t)
	snap, err := p.Prepare()
	require.NoError(t, err)
	_, err = p.Train(snap)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(p.ModelDir, artifact.FileFor(artifact.KindCluster))))

	res, err := p.AnalyzeSnapshot(snap, 100002, narrative.Hindi)
	require.NoError(t, err)
	assert.Nil(t, res.SoilCluster)
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "soil_cluster")
	assert.Contains(t, res.Summary, "मिट्टी की सेहत का जोखिम")
}

func TestAnalyzeErrors(t *testing.T) {
	p := newPipeline(t)
	snap, err := p.Prepare()
	require.NoError(t, err)

	_, err = p.AnalyzeSnapshot(snap, 100001, narrative.English)
	var anf *soil.ArtifactNotFoundError
	require.ErrorAs(t, err, &anf)
	assert.False(t, p.ModelsReady())

	_, err = p.Train(snap)
	require.NoError(t, err)
	_, err = p.AnalyzeSnapshot(snap, 999999, narrative.English)
	var fnf *soil.FieldNotFoundError
	require.ErrorAs(t, err, &fnf)
	assert.Equal(t, int64(999999), fnf.FieldID)
}

func TestNewErrorPayload(t *testing.T) {
	base := &soil.FieldNotFoundError{FieldID: 7}
	err := fmt.Errorf("predict: %w", base)

	p := NewErrorPayload(err, false)
	assert.Equal(t, "FieldNotFoundError", p.Kind)
	assert.Equal(t, err.Error(), p.Error)
	assert.Empty(t, p.Trace)

	p = NewErrorPayload(err, true)
	assert.Contains(t, p.Trace, "predict: field 7 not found")
	assert.Contains(t, p.Trace, "goroutine")

	assert.Equal(t, "InternalError", NewErrorPayload(fmt.Errorf("boom"), false).Kind)
	assert.Equal(t, ErrorPayload{}, NewErrorPayload(nil, true))
}
