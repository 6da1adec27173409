// Package artifact persists fitted models as msgpack envelopes.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
	"github.com/KaramelBytes/soilfusion-cli/internal/utils"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Version of the envelope layout. Loading a different version fails.
const Version = 1

// Artifact kinds and their file names.
const (
	KindYield   = "yield"
	KindAnomaly = "anomaly"
	KindCluster = "cluster"

	YieldFile   = "yield_model.msgpack"
	AnomalyFile = "anomaly_model.msgpack"
	ClusterFile = "clustering_model.msgpack"
)

// FileFor returns the conventional file name of a kind.
func FileFor(kind string) string {
	switch kind {
	case KindYield:
		return YieldFile
	case KindAnomaly:
		return AnomalyFile
	case KindCluster:
		return ClusterFile
	}
	return kind + ".msgpack"
}

// Envelope wraps an encoded model payload.
type Envelope struct {
	ID        string             `msgpack:"id"`
	Kind      string             `msgpack:"kind"`
	Version   int                `msgpack:"version"`
	CreatedAt time.Time          `msgpack:"created_at"`
	Payload   msgpack.RawMessage `msgpack:"payload"`
}

// Handle identifies a persisted artifact. Trainers return one for each model
// they write.
type Handle struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Save encodes payload into dir/FileFor(kind), replacing any previous file.
func Save(dir, kind string, payload any) (*Handle, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s model: %w", kind, err)
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Payload:   body,
	}
	b, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	if err := utils.EnsureDirs(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileFor(kind))
	if err := utils.SafeWriteFile(path, b); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return &Handle{ID: env.ID, Kind: kind, Path: path, CreatedAt: env.CreatedAt}, nil
}

// Load decodes the artifact of the given kind from dir into out. A missing
// file yields *soil.ArtifactNotFoundError.
func Load(dir, kind string, out any) (*Handle, error) {
	path := filepath.Join(dir, FileFor(kind))
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &soil.ArtifactNotFoundError{Name: FileFor(kind), Path: path, Err: err}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if env.Kind != kind {
		return nil, fmt.Errorf("%s holds a %q artifact, want %q", path, env.Kind, kind)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%s has artifact version %d, want %d (retrain)", path, env.Version, Version)
	}
	if err := msgpack.Unmarshal(env.Payload, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return &Handle{ID: env.ID, Kind: env.Kind, Path: path, CreatedAt: env.CreatedAt}, nil
}
