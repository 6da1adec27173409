// Package inference scores a single field's latest engineered row against
// the persisted models.
package inference

import (
	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/dataset"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/learn"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/train"
	"go.uber.org/zap"
)

// Service reads artifacts from ModelDir and rows from Features. It holds no
// cached models; every call loads the artifact it needs.
type Service struct {
	ModelDir string
	Features *features.Set
	Crops    []soil.Crop
	Log      *zap.SugaredLogger
}

func (s *Service) log() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

// YieldVector lays the latest row out as train.YieldFeatures. The avg_* slots
// repeat the rolling means.
func YieldVector(r features.Row, soilCode int, cropID int64) []float64 {
	return []float64{
		r.RollMeanMoisture, r.RollMeanPH, r.RollMeanNitrogen,
		r.Temperature, r.Rainfall, r.Humidity, float64(cropID),
		r.RollMeanMoisture, r.RollMeanPH, r.RollMeanNitrogen,
		r.Stability, float64(soilCode),
	}
}

// PredictYield returns the forecast yield in kg/ha.
func (s *Service) PredictYield(fieldID int64) (float64, error) {
	var m train.YieldModel
	if _, err := artifact.Load(s.ModelDir, artifact.KindYield, &m); err != nil {
		return 0, err
	}
	row, err := s.Features.Latest(fieldID)
	if err != nil {
		return 0, err
	}
	code, seen := m.SoilCode(row.SoilType)
	if !seen {
		s.log().Warnw("unseen soil type, using code 0", "field_id", fieldID, "soil_type", row.SoilType)
	}
	crop, err := dataset.FirstCrop(s.Crops)
	if err != nil {
		return 0, err
	}
	return m.Predict(YieldVector(row, code, crop.CropID))
}

// DetectAnomaly reports whether the latest raw reading is anomalous.
func (s *Service) DetectAnomaly(fieldID int64) (bool, error) {
	var m train.AnomalyModel
	if _, err := artifact.Load(s.ModelDir, artifact.KindAnomaly, &m); err != nil {
		return false, err
	}
	row, err := s.Features.Latest(fieldID)
	if err != nil {
		return false, err
	}
	if m.Predict(train.RawVector(row.Reading)) == learn.Outlier {
		s.log().Warnw("soil anomaly detected", "field_id", fieldID, "date", row.Date.Format("2006-01-02"))
		return true, nil
	}
	return false, nil
}

// AssignCluster returns the soil-health cluster of the latest reading.
func (s *Service) AssignCluster(fieldID int64) (int, error) {
	var m train.ClusterModel
	if _, err := artifact.Load(s.ModelDir, artifact.KindCluster, &m); err != nil {
		return 0, err
	}
	row, err := s.Features.Latest(fieldID)
	if err != nil {
		return 0, err
	}
	return m.Predict(train.RawVector(row.Reading)), nil
}
