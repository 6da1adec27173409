// Package recommend scores soil health and decides whether a field is ready
// for planting.
package recommend

import (
	"errors"
	"math"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/features"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"gonum.org/v1/gonum/stat"
)

// Risk is the soil-health risk tier.
type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// Planting decision strings.
const (
	StatusOptimal   = "Optimal to Plant"
	StatusDelay     = "Warning — Delay Planting"
	PlaceholderCrop = "Treat Soil First"
	NoStartDate     = "N/A"
)

// WindowDays is the number of trailing rows the decision averages over.
const WindowDays = 7

// HealthScore bands moisture, pH and nitrogen, subtracts the anomaly penalty
// and clamps the total to [0, 100].
func HealthScore(moisture, ph, nitrogen float64, anomalous bool) (int, Risk) {
	score := 0
	switch {
	case moisture >= 20 && moisture <= 40:
		score += 30
	case (moisture >= 10 && moisture < 20) || (moisture > 40 && moisture <= 50):
		score += 15
	}
	phDiff := math.Abs(ph - 6.5)
	switch {
	case phDiff <= 0.5:
		score += 30
	case phDiff <= 1.5:
		score += 15
	}
	switch {
	case nitrogen >= 50:
		score += 30
	case nitrogen >= 20:
		score += 15
	}
	if anomalous {
		score -= 20
	}
	score = max(0, min(100, score))
	switch {
	case score >= 80:
		return score, RiskLow
	case score >= 50:
		return score, RiskMedium
	default:
		return score, RiskHigh
	}
}

// Eligible reports whether the averaged readings allow planting.
func Eligible(moisture, ph, nitrogen float64, anomalous bool) bool {
	return moisture >= 15 && moisture <= 40 &&
		ph >= 5.5 && ph <= 7.5 &&
		nitrogen >= 30 &&
		!anomalous
}

// Confidence combines the health score, mean stability and anomaly flag,
// clamped to [0, 100].
func Confidence(score int, meanStability float64, anomalous bool) float64 {
	c := 0.4*float64(score) + 0.4*(10*meanStability)
	if !anomalous {
		c += 20
	}
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(100, c))
}

// Recommendation is the planting decision for one field.
type Recommendation struct {
	FieldID     int64   `json:"field_id"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	TargetCrop  string  `json:"target_crop"`
	StartDate   string  `json:"start_date"`
	Risk        Risk    `json:"risk"`
	HealthScore int     `json:"health_score"`

	// Window averages; NaN when the window had no reading.
	AvgMoisture   float64 `json:"-"`
	AvgPH         float64 `json:"-"`
	AvgNitrogen   float64 `json:"-"`
	MeanStability float64 `json:"-"`
}

// Ready reports whether the decision allows planting.
func (r Recommendation) Ready() bool { return r.Status == StatusOptimal }

func presentMean(vals []float64) float64 {
	var xs []float64
	for _, v := range vals {
		if soil.Present(v) {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Assess decides over the last WindowDays rows of window (oldest first).
// The first crop of crops is the target when planting is allowed. An empty
// crop table is a DataFormatError.
func Assess(window []features.Row, anomalous bool, crops []soil.Crop, now time.Time) (Recommendation, error) {
	if len(window) == 0 {
		return Recommendation{}, errors.New("recommend: empty reading window")
	}
	if len(crops) == 0 {
		return Recommendation{}, &soil.DataFormatError{Source: "crops", Reason: "crop reference table is empty"}
	}
	if len(window) > WindowDays {
		window = window[len(window)-WindowDays:]
	}
	var m, ph, n, st []float64
	for _, r := range window {
		m = append(m, r.Moisture)
		ph = append(ph, r.PH)
		n = append(n, r.Nitrogen)
		st = append(st, r.Stability)
	}
	rec := Recommendation{
		FieldID:       window[len(window)-1].FieldID,
		AvgMoisture:   presentMean(m),
		AvgPH:         presentMean(ph),
		AvgNitrogen:   presentMean(n),
		MeanStability: presentMean(st),
	}
	rec.HealthScore, rec.Risk = HealthScore(rec.AvgMoisture, rec.AvgPH, rec.AvgNitrogen, anomalous)
	rec.Confidence = math.Round(Confidence(rec.HealthScore, rec.MeanStability, anomalous)*100) / 100

	if Eligible(rec.AvgMoisture, rec.AvgPH, rec.AvgNitrogen, anomalous) {
		rec.Status = StatusOptimal
		rec.TargetCrop = crops[0].CropName
		rec.StartDate = now.AddDate(0, 0, 2).Format("2006-01-02")
	} else {
		rec.Status = StatusDelay
		rec.TargetCrop = PlaceholderCrop
		rec.StartDate = NoStartDate
	}
	return rec, nil
}
