package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEncodeOneFramePerLine(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	frames := []Frame{
		UserMessage("hello"),
		Chunk("Hi"),
		Chunk(" there"),
		Done(),
	}
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != len(frames) {
		t.Fatalf("expected %d lines, got %d", len(frames), len(lines))
	}
	for i, line := range lines {
		var f Frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			t.Fatalf("line %d not valid json: %v", i, err)
		}
		if f.Type != frames[i].Type || f.Content != frames[i].Content {
			t.Fatalf("line %d mismatch: got %+v want %+v", i, f, frames[i])
		}
	}
}

func TestDoneFrameHasNoPayload(t *testing.T) {
	line, err := Done().marshalLine()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.TrimSpace(string(line)) != `{"type":"done"}` {
		t.Fatalf("unexpected done frame encoding: %s", line)
	}
}

func TestDecoderWholeLines(t *testing.T) {
	d := NewDecoder(zerolog.Nop())

	frames := d.Feed([]byte(`{"type":"ai_chunk","content":"Hi"}` + "\n" + `{"type":"done"}` + "\n"))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Type != FrameAIChunk || frames[0].Content != "Hi" {
		t.Fatalf("first frame mismatch: %+v", frames[0])
	}
	if !frames[1].Terminal() {
		t.Fatalf("expected terminal done frame")
	}
}

func TestDecoderSplitMidLine(t *testing.T) {
	d := NewDecoder(zerolog.Nop())

	frames := d.Feed([]byte(`{"type":"ai_chunk","con`))
	if len(frames) != 0 {
		t.Fatalf("expected no frames from partial line, got %d", len(frames))
	}
	frames = d.Feed([]byte(`tent":" there"}` + "\n"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(frames))
	}
	if frames[0].Content != " there" {
		t.Fatalf("fragment mismatch: %q", frames[0].Content)
	}
}

func TestDecoderArbitrarySplits(t *testing.T) {
	payload := `{"type":"ai_chunk","content":"Par"}` + "\n" +
		`{"type":"ai_chunk","content":"is"}` + "\n" +
		`{"type":"done"}` + "\n"

	// Every split point must yield the same logical frames.
	for cut := 0; cut <= len(payload); cut++ {
		d := NewDecoder(zerolog.Nop())
		frames := d.Feed([]byte(payload[:cut]))
		frames = append(frames, d.Feed([]byte(payload[cut:]))...)

		if len(frames) != 3 {
			t.Fatalf("cut %d: expected 3 frames, got %d", cut, len(frames))
		}
		if frames[0].Content+frames[1].Content != "Paris" {
			t.Fatalf("cut %d: reassembled %q", cut, frames[0].Content+frames[1].Content)
		}
		if frames[2].Type != FrameDone {
			t.Fatalf("cut %d: expected done, got %+v", cut, frames[2])
		}
	}
}

func TestDecoderDropsMalformedLines(t *testing.T) {
	d := NewDecoder(zerolog.Nop())

	frames := d.Feed([]byte("not json\n" + `{"content":"no type"}` + "\n" + `{"type":"done"}` + "\n"))
	if len(frames) != 1 || frames[0].Type != FrameDone {
		t.Fatalf("expected only the done frame, got %+v", frames)
	}
	if d.Dropped() != 2 {
		t.Fatalf("expected 2 dropped lines, got %d", d.Dropped())
	}
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	d := NewDecoder(zerolog.Nop())

	frames := d.Feed([]byte("\n\n" + `{"type":"ai_chunk","content":"x"}` + "\n\n"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if d.Dropped() != 0 {
		t.Fatalf("blank lines should not count as dropped, got %d", d.Dropped())
	}
}
