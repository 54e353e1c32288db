package wire

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Decoder reassembles frames from a byte stream that may arrive in arbitrary
// read-sized pieces. A trailing incomplete line is held in the buffer until the
// rest of it arrives; only complete, newline-terminated lines are decoded.
type Decoder struct {
	buf     bytes.Buffer
	logger  zerolog.Logger
	dropped int
}

func NewDecoder(logger zerolog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Feed appends raw bytes and returns every frame completed by them, in order.
// Lines that fail to decode are dropped with a warning; the stream continues.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf.Write(p)

	var frames []Frame
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, raw[:idx])
		d.buf.Next(idx + 1)

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(line, &f); err != nil || f.Type == "" {
			d.dropped++
			d.logger.Warn().Str("line", string(line)).Msg("dropping undecodable frame")
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// Dropped returns how many malformed lines were discarded so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}
