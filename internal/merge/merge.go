// Package merge joins canonical sensor rows with field profiles.
package merge

import (
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"go.uber.org/zap"
)

// Row is a canonical reading with its resolved soil type. SoilType is empty
// when neither a profile nor the sensor table named one.
type Row struct {
	soil.Reading
	SoilType string
}

// Join left-joins readings to profiles on field_id. When several profiles
// share an id the first one wins. A Soil_Type carried on the sensor row
// fills an empty profile soil type, or stands in when no profile exists.
func Join(readings []soil.Reading, profiles []soil.FieldProfile, log *zap.SugaredLogger) []Row {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	soilOf := make(map[int64]string, len(profiles))
	for _, p := range profiles {
		if _, dup := soilOf[p.FieldID]; dup {
			log.Debugw("duplicate field profile ignored", "field_id", p.FieldID)
			continue
		}
		soilOf[p.FieldID] = p.SoilType
	}

	out := make([]Row, len(readings))
	unresolved := map[int64]bool{}
	for i, r := range readings {
		st := soilOf[r.FieldID]
		if st == "" {
			st = r.AltSoilType
		}
		if st == "" {
			unresolved[r.FieldID] = true
		}
		out[i] = Row{Reading: r, SoilType: st}
	}
	if len(unresolved) > 0 {
		log.Warnw("fields without a soil type", "fields", len(unresolved))
	}
	return out
}
