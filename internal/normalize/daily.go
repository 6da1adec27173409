package normalize

import (
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
)

// measure indexes the canonical numeric columns.
type measure int

const (
	mMoisture measure = iota
	mPH
	mNitrogen
	mTemperature
	mRainfall
	mHumidity
	numMeasures
)

type dayKey struct {
	field int64
	day   int64 // unix seconds of the UTC date
}

type dayAcc struct {
	sum [numMeasures]float64
	n   [numMeasures]int
}

// dailyMeans averages present values per (field, day) and measure.
type dailyMeans struct {
	order []dayKey
	accs  map[dayKey]*dayAcc
}

func newDailyMeans() *dailyMeans {
	return &dailyMeans{accs: map[dayKey]*dayAcc{}}
}

func (d *dailyMeans) add(field int64, date time.Time, m measure, v float64) {
	if !soil.Present(v) {
		d.touch(field, date)
		return
	}
	a := d.touch(field, date)
	a.sum[m] += v
	a.n[m]++
}

// touch registers the group even when every value is absent.
func (d *dailyMeans) touch(field int64, date time.Time) *dayAcc {
	k := dayKey{field: field, day: soil.Day(date).Unix()}
	a, ok := d.accs[k]
	if !ok {
		a = &dayAcc{}
		d.accs[k] = a
		d.order = append(d.order, k)
	}
	return a
}

func (a *dayAcc) mean(m measure) float64 {
	if a.n[m] == 0 {
		return soil.NaN()
	}
	return a.sum[m] / float64(a.n[m])
}

func (k dayKey) date() time.Time { return time.Unix(k.day, 0).UTC() }

// reading materializes the group's means.
func (a *dayAcc) reading(k dayKey) soil.Reading {
	return soil.Reading{
		FieldID:     k.field,
		Date:        k.date(),
		Moisture:    a.mean(mMoisture),
		PH:          a.mean(mPH),
		Nitrogen:    a.mean(mNitrogen),
		Temperature: a.mean(mTemperature),
		Rainfall:    a.mean(mRainfall),
		Humidity:    a.mean(mHumidity),
	}
}
