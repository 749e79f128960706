package pipeline

import (
	"fmt"
	"io"
)

// Trace writes a per-cycle record of pipeline state to an io.Writer. A nil
// *Trace (the default) is a no-op, so callers never need to guard calls to
// it behind a nil check of their own.
type Trace struct {
	w io.Writer
}

// NewTrace wraps w as a pipeline trace sink.
func NewTrace(w io.Writer) *Trace {
	return &Trace{w: w}
}

func (t *Trace) logf(format string, args ...interface{}) {
	if t == nil || t.w == nil {
		return
	}

	fmt.Fprintf(t.w, format+"\n", args...)
}
