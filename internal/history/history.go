// Package history persists analysis results in a local SQLite database so a
// field's past recommendations can be listed later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/pipeline"
	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Soil health labels.
const (
	Healthy  = "healthy"
	Critical = "critical"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS analysis_history (
	id              TEXT PRIMARY KEY,
	field_id        INTEGER NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	yield           REAL,
	anomaly         INTEGER NOT NULL,
	soil_health     TEXT NOT NULL,
	target_crop     TEXT,
	confidence      REAL,
	moisture        REAL,
	ph              REAL,
	nitrogen        REAL,
	temperature     REAL,
	recommendation  TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_field ON analysis_history(field_id, created_at);
`

// Metrics are the latest soil readings stored with an entry. Absent values are nil.
type Metrics struct {
	Moisture    *float64 `json:"moisture"`
	PH          *float64 `json:"ph"`
	Nitrogen    *float64 `json:"nitrogen"`
	Temperature *float64 `json:"temperature"`
}

// Entry is one stored analysis.
type Entry struct {
	ID              string          `json:"id"`
	FieldID         int64           `json:"field_id"`
	Timestamp       time.Time       `json:"timestamp"`
	YieldPrediction float64         `json:"yield_prediction"`
	AnomalyDetected bool            `json:"anomaly_detected"`
	SoilHealth      string          `json:"soil_health"`
	TargetCrop      string          `json:"target_crop"`
	Confidence      float64         `json:"confidence"`
	Metrics         Metrics         `json:"soil_metrics"`
	Recommendation  json.RawMessage `json:"recommendation"`
}

// FromResult builds an entry for res, taking metrics from its newest reading.
func FromResult(res *pipeline.Result, at time.Time) (Entry, error) {
	rec, err := json.Marshal(res.Recommendation)
	if err != nil {
		return Entry{}, fmt.Errorf("encode recommendation: %w", err)
	}
	e := Entry{
		ID:              uuid.NewString(),
		FieldID:         res.FieldID,
		Timestamp:       at.UTC(),
		YieldPrediction: res.YieldPrediction,
		AnomalyDetected: res.AnomalyDetected,
		SoilHealth:      Critical,
		TargetCrop:      res.Recommendation.TargetCrop,
		Confidence:      res.Recommendation.Confidence,
		Recommendation:  rec,
	}
	if res.Recommendation.Ready() {
		e.SoilHealth = Healthy
	}
	if n := len(res.HistoricalData); n > 0 {
		last := res.HistoricalData[n-1]
		e.Metrics = Metrics{Moisture: last.Moisture, PH: last.PH, Nitrogen: last.Nitrogen, Temperature: last.Temperature}
	}
	return e, nil
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil || !soil.Present(*v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableFloat(v float64) sql.NullFloat64 {
	if !soil.Present(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// Record inserts e, assigning an id and timestamp when they are empty.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	anomaly := 0
	if e.AnomalyDetected {
		anomaly = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_history
			(id, field_id, created_at, yield, anomaly, soil_health, target_crop, confidence,
			 moisture, ph, nitrogen, temperature, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FieldID, e.Timestamp, nullableFloat(e.YieldPrediction), anomaly, e.SoilHealth,
		e.TargetCrop, nullableFloat(e.Confidence),
		nullFloat(e.Metrics.Moisture), nullFloat(e.Metrics.PH), nullFloat(e.Metrics.Nitrogen), nullFloat(e.Metrics.Temperature),
		string(e.Recommendation),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries for fieldID, newest first.
func (s *Store) List(ctx context.Context, fieldID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, field_id, created_at, yield, anomaly, soil_health, target_crop, confidence,
		       moisture, ph, nitrogen, temperature, recommendation
		FROM analysis_history
		WHERE field_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, fieldID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			anomaly            int
			crop, rec          sql.NullString
			yield, conf        sql.NullFloat64
			moist, ph, n, temp sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.FieldID, &e.Timestamp, &yield, &anomaly, &e.SoilHealth, &crop, &conf,
			&moist, &ph, &n, &temp, &rec); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.AnomalyDetected = anomaly != 0
		e.TargetCrop = crop.String
		e.YieldPrediction = yield.Float64
		e.Confidence = conf.Float64
		e.Metrics = Metrics{Moisture: fromNull(moist), PH: fromNull(ph), Nitrogen: fromNull(n), Temperature: fromNull(temp)}
		if rec.Valid && rec.String != "" {
			e.Recommendation = json.RawMessage(rec.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
