// Package pipeline wires the stages together for the CLI and HTTP surfaces:
// conversion, loading, normalization, merge, features, training and analysis.
package pipeline

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/config"
	"github.com/KaramelBytes/soilfusion-cli/internal/dataset"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/inference"
	"github.com/KaramelBytes/soilfusion-cli/internal/merge"
	"github.com/KaramelBytes/soilfusion-cli/internal/narrative"
	"github.com/KaramelBytes/soilfusion-cli/internal/normalize"
	"github.com/KaramelBytes/soilfusion-cli/internal/recommend"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
	"github.com/KaramelBytes/soilfusion-cli/internal/train"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryDays is the number of trailing daily readings returned with a result.
const HistoryDays = 14

// Pipeline runs one snapshot at a time. It keeps no state between calls.
type Pipeline struct {
	DataDir       string
	ModelDir      string
	PlotsDir      string
	Seed          int64
	Contamination float64
	Now           func() time.Time
	Log           *zap.SugaredLogger
}

// New builds a pipeline from the loaded configuration.
func New(cfg *config.Global, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		DataDir:       cfg.DataDir,
		ModelDir:      cfg.ModelDir,
		PlotsDir:      cfg.PlotsDir,
		Seed:          cfg.Seed,
		Contamination: cfg.Contamination,
		Log:           log,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) log() *zap.SugaredLogger {
	if p.Log == nil {
		return zap.NewNop().Sugar()
	}
	return p.Log
}

// Snapshot is the engineered state of one run.
type Snapshot struct {
	RunID      string
	Inputs     *dataset.Inputs
	Canonical  *normalize.Canonical
	Features   *features.Set
	Converted  []string
	Conversion []tabular.ConversionWarning
}

// Prepare converts uploads, loads inputs (synthesizing missing ones),
// normalizes the sensor table, joins soil types and builds features.
func (p *Pipeline) Prepare() (*Snapshot, error) {
	log := p.log()
	if err := utils.EnsureDirs(p.DataDir); err != nil {
		return nil, err
	}
	snap := &Snapshot{RunID: uuid.NewString()}
	log = log.With("run_id", snap.RunID)
	snap.Converted, snap.Conversion = tabular.ConvertDir(p.DataDir, log)

	in, err := dataset.Load(p.DataDir, dataset.Options{Now: p.now, Seed: p.Seed, Log: log})
	if err != nil {
		return nil, err
	}
	snap.Inputs = in

	canon, err := normalize.Normalize(in.Sensor, in.Weather, normalize.Options{
		Now:  p.now,
		Rand: rand.New(rand.NewSource(p.Seed)),
		Log:  log,
	})
	if err != nil {
		return nil, err
	}
	snap.Canonical = canon
	snap.Features = features.Build(merge.Join(canon.Readings, in.Fields, log))
	log.Infow("features built", "rows", snap.Features.Len(), "fields", len(snap.Features.Fields()))
	return snap, nil
}

// Train fits and persists every model for the snapshot.
func (p *Pipeline) Train(snap *Snapshot) (*train.Report, error) {
	t := &train.Trainer{
		ModelDir:      p.ModelDir,
		PlotsDir:      p.PlotsDir,
		Seed:          p.Seed,
		Contamination: p.Contamination,
		Log:           p.log().With("run_id", snap.RunID),
	}
	return t.All(snap.Features, snap.Inputs.Yields)
}

// Reading is one rounded daily reading in a result. Absent values are null.
type Reading struct {
	Date        string   `json:"date"`
	Moisture    *float64 `json:"moisture"`
	Temperature *float64 `json:"temperature"`
	PH          *float64 `json:"ph"`
	Nitrogen    *float64 `json:"nitrogen"`
}

// Result is the structured analysis of one field.
type Result struct {
	FieldID         int64                    `json:"field_id"`
	YieldPrediction float64                  `json:"yield_prediction"`
	AnomalyDetected bool                     `json:"anomaly_detected"`
	SoilCluster     *int                     `json:"soil_cluster,omitempty"`
	Recommendation  recommend.Recommendation `json:"recommendation"`
	RecoveryTime    string                   `json:"recovery_time"`
	Summary         string                   `json:"summary"`
	HistoricalData  []Reading                `json:"historical_data"`
}

func round1(v float64) *float64 {
	if !soil.Present(v) {
		return nil
	}
	r := math.Round(v*10) / 10
	return &r
}

// Analyze rebuilds the snapshot and scores one field.
func (p *Pipeline) Analyze(fieldID int64, lang narrative.Lang) (*Result, error) {
	snap, err := p.Prepare()
	if err != nil {
		return nil, err
	}
	return p.AnalyzeSnapshot(snap, fieldID, lang)
}

// AnalyzeSnapshot scores one field of an already prepared snapshot.
func (p *Pipeline) AnalyzeSnapshot(snap *Snapshot, fieldID int64, lang narrative.Lang) (*Result, error) {
	log := p.log()
	svc := &inference.Service{
		ModelDir: p.ModelDir,
		Features: snap.Features,
		Crops:    snap.Inputs.Crops,
		Log:      log,
	}
	yield, err := svc.PredictYield(fieldID)
	if err != nil {
		return nil, err
	}
	anomalous, err := svc.DetectAnomaly(fieldID)
	if err != nil {
		return nil, err
	}
	res := &Result{FieldID: fieldID, YieldPrediction: yield, AnomalyDetected: anomalous}

	cluster, err := svc.AssignCluster(fieldID)
	var anf *soil.ArtifactNotFoundError
	switch {
	case err == nil:
		res.SoilCluster = &cluster
	case errors.As(err, &anf):
		log.Infow("no cluster model, omitting soil cluster", "field_id", fieldID)
	default:
		return nil, err
	}

	window, err := snap.Features.Recent(fieldID, recommend.WindowDays)
	if err != nil {
		return nil, err
	}
	rec, err := recommend.Assess(window, anomalous, snap.Inputs.Crops, p.now())
	if err != nil {
		return nil, err
	}
	res.Recommendation = rec
	res.RecoveryTime = narrative.RecoveryTime(rec.Risk, lang)

	crop := ""
	if c, err := dataset.FirstCrop(snap.Inputs.Crops); err == nil {
		crop = c.CropName
	}
	res.Summary, err = narrative.Summary(narrative.Input{
		Risk:      rec.Risk,
		Moisture:  rec.AvgMoisture,
		PH:        rec.AvgPH,
		Nitrogen:  rec.AvgNitrogen,
		Anomalous: anomalous,
		YieldKgHa: yield,
		Crop:      crop,
	}, lang)
	if err != nil {
		return nil, err
	}

	recent, err := snap.Features.Recent(fieldID, HistoryDays)
	if err != nil {
		return nil, err
	}
	res.HistoricalData = make([]Reading, len(recent))
	for i, r := range recent {
		res.HistoricalData[i] = Reading{
			Date:        r.Date.Format("2006-01-02"),
			Moisture:    round1(r.Moisture),
			Temperature: round1(r.Temperature),
			PH:          round1(r.PH),
			Nitrogen:    round1(r.Nitrogen),
		}
	}
	return res, nil
}

// ModelsReady reports whether the yield and anomaly artifacts exist.
func (p *Pipeline) ModelsReady() bool {
	for _, kind := range []string{artifact.KindYield, artifact.KindAnomaly} {
		if !utils.FileExists(filepath.Join(p.ModelDir, artifact.FileFor(kind))) {
			return false
		}
	}
	return true
}
