// Package normalize reconciles the supported sensor table layouts into one
// canonical per-field daily series.
//
// A raw sensor table is classified into exactly one Shape by a prioritized
// predicate chain; each shape has its own normalizer and every normalizer
// produces the same Canonical output, so later stages never branch on layout.
package normalize

import (
	"math/rand"
	"sort"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/tabular"
	"go.uber.org/zap"
)

// Shape identifies the layout of a raw sensor table.
type Shape int

const (
	// ShapeLegacy is long format: (field_id, timestamp, parameter, value) plus a weather table.
	ShapeLegacy Shape = iota
	// ShapeWide carries one column per measurement, keyed by moisture_percent.
	ShapeWide
	// ShapeFarmer is the ad-hoc spreadsheet layout keyed by farmer name.
	ShapeFarmer
)

func (s Shape) String() string {
	switch s {
	case ShapeFarmer:
		return "farmer"
	case ShapeWide:
		return "wide"
	default:
		return "legacy"
	}
}

// Column names that select a shape.
const (
	FarmerColumn     = "Farmer"
	WideMarkerColumn = "moisture_percent"
)

// Detect classifies a sensor table. The first matching predicate wins and the
// legacy layout is the fallback.
func Detect(t *tabular.Table) Shape {
	switch {
	case t.Has(FarmerColumn):
		return ShapeFarmer
	case t.Has(WideMarkerColumn):
		return ShapeWide
	default:
		return ShapeLegacy
	}
}

// Canonical is the normalized sensor series, ordered by (field_id, date).
type Canonical struct {
	Shape    Shape
	Readings []soil.Reading
	// Skipped counts raw rows discarded for an unparseable key.
	Skipped int
	// JoinDropped counts legacy sensor days with no matching weather day.
	JoinDropped int
}

// Options carries the injectable clock and noise source used by the farmer
// normalizer.
type Options struct {
	Now  func() time.Time
	Rand *rand.Rand
	Log  *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(42))
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return o
}

// Normalize detects the shape of sensor and runs the matching normalizer.
// weather may be nil; only the legacy shape requires it.
func Normalize(sensor, weather *tabular.Table, opt Options) (*Canonical, error) {
	opt = opt.withDefaults()
	shape := Detect(sensor)
	opt.Log.Infow("detected sensor layout", "shape", shape.String(), "rows", sensor.Len())
	var (
		c   *Canonical
		err error
	)
	switch shape {
	case ShapeFarmer:
		c, err = normalizeFarmer(sensor, opt)
	case ShapeWide:
		c, err = normalizeWide(sensor, opt)
	default:
		c, err = normalizeLegacy(sensor, weather, opt)
	}
	if err != nil {
		return nil, err
	}
	c.Shape = shape
	sortReadings(c.Readings)
	if c.Skipped > 0 {
		opt.Log.Warnw("skipped sensor rows with unparseable keys", "rows", c.Skipped)
	}
	return c, nil
}

func sortReadings(rs []soil.Reading) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].FieldID != rs[j].FieldID {
			return rs[i].FieldID < rs[j].FieldID
		}
		return rs[i].Date.Before(rs[j].Date)
	})
}
