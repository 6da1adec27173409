package pipeline

import (
	"errors"
	"runtime/debug"
	"strings"

	"github.com/KaramelBytes/soilfusion-cli/internal/soil"
)

// ErrorPayload is the JSON shape of a failed invocation.
type ErrorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Trace string `json:"trace,omitempty"`
}

// NewErrorPayload describes err. With trace set, the wrapped-error chain and
// the current goroutine stack are attached.
func NewErrorPayload(err error, trace bool) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	p := ErrorPayload{Error: err.Error(), Kind: soil.Kind(err)}
	if trace {
		var b strings.Builder
		for e := err; e != nil; e = errors.Unwrap(e) {
			b.WriteString(e.Error())
			b.WriteByte('\n')
		}
		b.Write(debug.Stack())
		p.Trace = b.String()
	}
	return p
}
