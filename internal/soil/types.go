// Package soil holds the canonical agricultural records shared by every
// pipeline stage, and the error taxonomy callers can match with errors.As.
package soil

import (
	"math"
	"time"
)

// Season is the Indian cropping season a calendar month belongs to.
type Season string

const (
	Kharif Season = "Kharif"
	Rabi   Season = "Rabi"
	Zaid   Season = "Zaid"
)

// SeasonOf maps a calendar month to its season. Yield history records use the
// same labels, so this mapping is what makes the training join line up.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.June, time.July, time.August, time.September:
		return Kharif
	case time.October, time.November, time.December, time.January, time.February, time.March:
		return Rabi
	default:
		return Zaid
	}
}

// Reading is one canonical daily row for a field. Optional measurements that
// were not present in the input are NaN.
type Reading struct {
	FieldID     int64
	Date        time.Time
	Moisture    float64 // percent
	PH          float64
	Nitrogen    float64 // ppm
	Temperature float64 // °C
	Rainfall    float64 // mm
	Humidity    float64 // percent
	// AltSoilType carries a "Soil_Type" value found directly on the sensor
	// table (Farmer uploads); the merger uses it to back-fill soil_type.
	AltSoilType string
}

// FieldProfile is one row of fields.csv.
type FieldProfile struct {
	FieldID   int64
	FarmID    int64
	FieldName string
	SoilType  string
	Area      float64
}

// YieldRecord is one row of yield_history.csv.
type YieldRecord struct {
	YieldID    int64
	FieldID    int64
	CropID     int64
	Year       int
	Season     Season
	YieldValue float64 // kg/ha
}

// Crop is one row of crops.csv.
type Crop struct {
	CropID           int64
	CropName         string
	GrowthPeriodDays int
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NaN is shorthand for an absent measurement.
func NaN() float64 { return math.NaN() }

// Present reports whether v holds a measurement.
func Present(v float64) bool { return !math.IsNaN(v) }
