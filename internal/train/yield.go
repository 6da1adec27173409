package train

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/KaramelBytes/soilfusion-cli/internal/artifact"
	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/learn"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
)

// YieldFeatures is the vector layout shared by training and inference. The
// avg_* and roll_mean_* entries are distinct seasonal aggregates at training
// time but carry the same latest rolling mean at inference time.
var YieldFeatures = []string{
	"avg_moisture", "avg_ph", "avg_nitrogen", "avg_temperature", "rainfall",
	"humidity", "crop_id", "roll_mean_moisture", "roll_mean_ph",
	"roll_mean_nitrogen", "stability_score", "soil_type",
}

// SoilTypeIndex is the position of the encoded soil type in YieldFeatures.
const SoilTypeIndex = 11

// SyntheticCropID labels synthetic training rows.
const SyntheticCropID = 300001

// Regression candidates, in tie-break order.
const (
	AlgoRidge = "ridge"
	AlgoKNN   = "knn"
)

// YieldModel is the persisted yield artifact: the selected regressor plus the
// soil-type encoder fitted alongside it.
type YieldModel struct {
	Algorithm string             `msgpack:"algorithm"`
	Ridge     *learn.Ridge       `msgpack:"ridge,omitempty"`
	KNN       *learn.KNN         `msgpack:"knn,omitempty"`
	Encoder   learn.LabelEncoder `msgpack:"encoder"`
	Features  []string           `msgpack:"features"`
	Synthetic bool               `msgpack:"synthetic"`
}

func (m *YieldModel) regressor() (learn.Regressor, error) {
	switch {
	case m.Algorithm == AlgoRidge && m.Ridge != nil:
		return m.Ridge, nil
	case m.Algorithm == AlgoKNN && m.KNN != nil:
		return m.KNN, nil
	}
	return nil, fmt.Errorf("yield model has no fitted %q regressor", m.Algorithm)
}

// SoilCode encodes a soil type; unseen types report false and code 0.
func (m *YieldModel) SoilCode(soilType string) (int, bool) {
	return m.Encoder.Transform(soilType)
}

// Predict scores one vector laid out as YieldFeatures.
func (m *YieldModel) Predict(vec []float64) (float64, error) {
	if len(vec) != len(YieldFeatures) {
		return 0, fmt.Errorf("yield vector has %d values, want %d", len(vec), len(YieldFeatures))
	}
	r, err := m.regressor()
	if err != nil {
		return 0, err
	}
	return r.Predict(expandSoil(vec, len(m.Encoder.Classes))), nil
}

// expandSoil replaces the soil code with a one-hot block of n columns. Codes
// outside [0, n) produce an all-zero block.
func expandSoil(vec []float64, n int) []float64 {
	out := make([]float64, SoilTypeIndex, SoilTypeIndex+n)
	copy(out, vec[:SoilTypeIndex])
	code := vec[SoilTypeIndex]
	for c := 0; c < n; c++ {
		v := 0.0
		if code == float64(c) {
			v = 1
		}
		out = append(out, v)
	}
	return out
}

// SeasonalRow aggregates one (field, year, season, soil type) group.
type SeasonalRow struct {
	FieldID          int64       `json:"field_id"`
	Year             int         `json:"year"`
	Season           soil.Season `json:"season"`
	SoilType         string      `json:"soil_type"`
	AvgMoisture      float64     `json:"avg_moisture"`
	AvgPH            float64     `json:"avg_ph"`
	AvgNitrogen      float64     `json:"avg_nitrogen"`
	AvgTemperature   float64     `json:"avg_temperature"`
	Rainfall         float64     `json:"rainfall"`
	Humidity         float64     `json:"humidity"`
	RollMeanMoisture float64     `json:"roll_mean_moisture"`
	RollMeanPH       float64     `json:"roll_mean_ph"`
	RollMeanNitrogen float64     `json:"roll_mean_nitrogen"`
	Stability        float64     `json:"stability_score"`
}

type seasonKey struct {
	field    int64
	year     int
	season   soil.Season
	soilType string
}

type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v float64) {
	if soil.Present(v) {
		a.sum += v
		a.n++
	}
}

func (a meanAcc) mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.sum / float64(a.n)
}

// SeasonalAggregate groups rows per (field, year, season, soil type). Rainfall
// is summed, everything else averaged. Rows without a soil type are excluded.
func SeasonalAggregate(rows []features.Row) []SeasonalRow {
	type group struct {
		m, ph, n, temp, hum, rm, rph, rn, st meanAcc
		rain                                 float64
	}
	groups := map[seasonKey]*group{}
	var keys []seasonKey
	for _, r := range rows {
		if r.SoilType == "" {
			continue
		}
		k := seasonKey{r.FieldID, r.Year, r.Season, r.SoilType}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.m.add(r.Moisture)
		g.ph.add(r.PH)
		g.n.add(r.Nitrogen)
		g.temp.add(r.Temperature)
		g.hum.add(r.Humidity)
		g.rm.add(r.RollMeanMoisture)
		g.rph.add(r.RollMeanPH)
		g.rn.add(r.RollMeanNitrogen)
		g.st.add(r.Stability)
		if soil.Present(r.Rainfall) {
			g.rain += r.Rainfall
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.field != b.field {
			return a.field < b.field
		}
		if a.year != b.year {
			return a.year < b.year
		}
		if a.season != b.season {
			return a.season < b.season
		}
		return a.soilType < b.soilType
	})
	out := make([]SeasonalRow, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, SeasonalRow{
			FieldID: k.field, Year: k.year, Season: k.season, SoilType: k.soilType,
			AvgMoisture: g.m.mean(), AvgPH: g.ph.mean(), AvgNitrogen: g.n.mean(),
			AvgTemperature: g.temp.mean(), Rainfall: g.rain, Humidity: g.hum.mean(),
			RollMeanMoisture: g.rm.mean(), RollMeanPH: g.rph.mean(), RollMeanNitrogen: g.rn.mean(),
			Stability: g.st.mean(),
		})
	}
	return out
}

// TrainingRow is a seasonal aggregate with its yield label.
type TrainingRow struct {
	SeasonalRow
	CropID int64   `json:"crop_id"`
	Yield  float64 `json:"yield_value"`
}

// JoinYields inner-joins seasonal rows to yield history on (field, year, season).
func JoinYields(seasonal []SeasonalRow, yields []soil.YieldRecord) []TrainingRow {
	type key struct {
		field  int64
		year   int
		season soil.Season
	}
	byKey := map[key][]soil.YieldRecord{}
	for _, y := range yields {
		k := key{y.FieldID, y.Year, y.Season}
		byKey[k] = append(byKey[k], y)
	}
	var out []TrainingRow
	for _, s := range seasonal {
		for _, y := range byKey[key{s.FieldID, s.Year, s.Season}] {
			out = append(out, TrainingRow{SeasonalRow: s, CropID: y.CropID, Yield: y.YieldValue})
		}
	}
	return out
}

// SyntheticLabels stands in for missing yield history with
// 2000 + 40·avg_moisture + N(0, 50) on crop SyntheticCropID.
func SyntheticLabels(seasonal []SeasonalRow, rng *rand.Rand) []TrainingRow {
	out := make([]TrainingRow, len(seasonal))
	for i, s := range seasonal {
		out[i] = TrainingRow{
			SeasonalRow: s,
			CropID:      SyntheticCropID,
			Yield:       2000 + 40*s.AvgMoisture + rng.NormFloat64()*50,
		}
	}
	return out
}

// quantile uses linear interpolation between closest ranks of sorted x.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// FilterIQR drops rows whose label lies outside [Q1 − 1.5·IQR, Q3 + 1.5·IQR].
func FilterIQR(rows []TrainingRow) []TrainingRow {
	ys := make([]float64, 0, len(rows))
	for _, r := range rows {
		ys = append(ys, r.Yield)
	}
	sort.Float64s(ys)
	q1, q3 := quantile(ys, 0.25), quantile(ys, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	out := rows[:0:0]
	for _, r := range rows {
		if r.Yield >= lo && r.Yield <= hi {
			out = append(out, r)
		}
	}
	return out
}

// Vector lays a training row out as YieldFeatures with the given soil code.
func (r TrainingRow) Vector(soilCode int) []float64 {
	return []float64{
		r.AvgMoisture, r.AvgPH, r.AvgNitrogen, r.AvgTemperature, r.Rainfall,
		r.Humidity, float64(r.CropID), r.RollMeanMoisture, r.RollMeanPH,
		r.RollMeanNitrogen, r.Stability, float64(soilCode),
	}
}

// CandidateScore is one regressor's fit quality.
type CandidateScore struct {
	Name     string  `json:"name"`
	TrainR2  float64 `json:"train_r2"`
	TestR2   float64 `json:"test_r2"`
	TestRMSE float64 `json:"test_rmse"`
}

// YieldDiagnostics summarizes a yield training run.
type YieldDiagnostics struct {
	Samples    int              `json:"samples"`
	Outliers   int              `json:"outliers_removed"`
	TrainSize  int              `json:"train_size"`
	TestSize   int              `json:"test_size"`
	Synthetic  bool             `json:"synthetic_labels"`
	Candidates []CandidateScore `json:"candidates"`
	Selected   string           `json:"selected"`
}

// chronoSplit holds out the last quarter (at least one row). A single row is
// used for both sides.
func chronoSplit(n int) (train, test int) {
	test = n / 4
	if test < 1 {
		test = 1
	}
	if n-test < 1 {
		return n, n
	}
	return n - test, test
}

// Yield fits the regression candidates on a chronological split and persists
// the one with the higher held-out R².
func (t *Trainer) Yield(set *features.Set, yields []soil.YieldRecord) (*artifact.Handle, *YieldDiagnostics, error) {
	log := t.log()
	seasonal := SeasonalAggregate(set.Rows())
	if len(seasonal) == 0 {
		return nil, nil, &soil.DataFormatError{Source: "features", Reason: "no seasonal rows with a soil type"}
	}
	diag := &YieldDiagnostics{}
	data := JoinYields(seasonal, yields)
	if len(data) == 0 {
		log.Warnw("no yield history matched; training on synthetic labels")
		data = SyntheticLabels(seasonal, rand.New(rand.NewSource(t.Seed)))
		diag.Synthetic = true
	}
	kept := data[:0:0]
	for _, r := range data {
		if soil.Present(r.Yield) {
			kept = append(kept, r)
		}
	}
	before := len(kept)
	data = FilterIQR(kept)
	diag.Outliers = before - len(data)
	if len(data) == 0 {
		return nil, nil, &soil.DataFormatError{Source: "yield_history.csv", Reason: "no usable yield labels"}
	}

	var enc learn.LabelEncoder
	soils := make([]string, len(data))
	for i, r := range data {
		soils[i] = r.SoilType
	}
	enc.Fit(soils)

	sort.SliceStable(data, func(i, j int) bool {
		if data[i].Year != data[j].Year {
			return data[i].Year < data[j].Year
		}
		return data[i].Season < data[j].Season
	})
	X := make([][]float64, len(data))
	y := make([]float64, len(data))
	for i, r := range data {
		code, _ := enc.Transform(r.SoilType)
		X[i] = expandSoil(r.Vector(code), len(enc.Classes))
		y[i] = r.Yield
	}
	fillNaN(X, columnMeans(X))

	nTrain, nTest := chronoSplit(len(X))
	trX, trY := X[:nTrain], y[:nTrain]
	teX, teY := X[len(X)-nTest:], y[len(y)-nTest:]
	diag.Samples, diag.TrainSize, diag.TestSize = len(X), nTrain, nTest

	ridge, knn := learn.NewRidge(1.0), learn.NewKNN(5)
	var best learn.Regressor
	bestR2 := math.Inf(-1)
	for _, c := range []learn.Regressor{ridge, knn} {
		if err := c.Fit(trX, trY); err != nil {
			return nil, nil, fmt.Errorf("fit %s: %w", c.Name(), err)
		}
		pred := learn.PredictAll(c, teX)
		score := CandidateScore{
			Name:     c.Name(),
			TrainR2:  learn.R2Score(trY, learn.PredictAll(c, trX)),
			TestR2:   learn.R2Score(teY, pred),
			TestRMSE: learn.RMSE(teY, pred),
		}
		log.Infow("yield candidate", "model", score.Name, "train_r2", score.TrainR2,
			"test_r2", score.TestR2, "test_rmse", score.TestRMSE)
		diag.Candidates = append(diag.Candidates, score)
		if best == nil || score.TestR2 > bestR2 {
			best, bestR2 = c, score.TestR2
		}
	}
	diag.Selected = best.Name()
	log.Infow("selected yield model", "model", diag.Selected, "synthetic_labels", diag.Synthetic)

	model := YieldModel{Algorithm: best.Name(), Encoder: enc, Features: YieldFeatures, Synthetic: diag.Synthetic}
	switch m := best.(type) {
	case *learn.Ridge:
		model.Ridge = m
	case *learn.KNN:
		model.KNN = m
	}
	h, err := artifact.Save(t.ModelDir, artifact.KindYield, &model)
	if err != nil {
		return nil, nil, err
	}
	return h, diag, nil
}
