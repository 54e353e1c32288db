package wire

import (
	"fmt"
	"io"
	"net/http"
)

// Encoder writes one frame per line and flushes after every frame so chunks
// reach the client as they are generated rather than sitting in an HTTP
// buffer until the response ends.
type Encoder struct {
	w     io.Writer
	flush func()
}

func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

func (e *Encoder) Encode(f Frame) error {
	line, err := f.marshalLine()
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	e.flush()
	return nil
}
