package soil

import (
	"errors"
	"fmt"
)

// DataFormatError indicates no recognized sensor schema, or a required
// reference file that is still missing after the synthetic-data attempt.
type DataFormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := fmt.Sprintf("data format error in %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// FieldNotFoundError indicates the requested field has no processed row.
type FieldNotFoundError struct{ FieldID int64 }

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %d not found in processed data", e.FieldID)
}

// ArtifactNotFoundError indicates a persisted model file is missing.
type ArtifactNotFoundError struct {
	Name string
	Path string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("model artifact %q not found at %s (run `soilfusion train` first)", e.Name, e.Path)
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Err }

// Kind returns a short machine-readable label for the first taxonomy error
// found in err's chain, or "InternalError".
func Kind(err error) string {
	var dfe *DataFormatError
	var fnf *FieldNotFoundError
	var anf *ArtifactNotFoundError
	switch {
	case errors.As(err, &dfe):
		return "DataFormatError"
	case errors.As(err, &fnf):
		return "FieldNotFoundError"
	case errors.As(err, &anf):
		return "ArtifactNotFoundError"
	}
	return "InternalError"
}
