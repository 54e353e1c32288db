// Package wire implements the newline-delimited JSON framing shared by the
// server stream writer and the client stream reader. Frame type names are a
// compatibility surface and must not change.
package wire

import "encoding/json"

type FrameType string

const (
	FrameUserMessage FrameType = "user_message"
	FrameAIChunk     FrameType = "ai_chunk"
	FrameDone        FrameType = "done"
	FrameError       FrameType = "error"
)

// Frame is one unit of the server-to-client event stream. Content carries the
// text fragment for ai_chunk frames, the echoed text for user_message frames
// and the human-readable message for error frames; done frames have no payload.
type Frame struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content,omitempty"`
	Role    string    `json:"role,omitempty"`
}

// Terminal reports whether the frame ends the stream. Exactly one terminal
// frame is emitted per request.
func (f Frame) Terminal() bool {
	return f.Type == FrameDone || f.Type == FrameError
}

func UserMessage(content string) Frame {
	return Frame{Type: FrameUserMessage, Content: content, Role: "user"}
}

func Chunk(fragment string) Frame {
	return Frame{Type: FrameAIChunk, Content: fragment}
}

func Done() Frame {
	return Frame{Type: FrameDone}
}

func Error(msg string) Frame {
	return Frame{Type: FrameError, Content: msg}
}

func (f Frame) marshalLine() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
