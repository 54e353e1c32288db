package client

import (
	"github.com/google/uuid"

	"coreon/internal/wire"
)

// Message is one entry of the client-side conversation view. ID is a stable
// in-memory identifier assigned at creation; it never changes while chunks
// are appended.
type Message struct {
	ID        string
	Role      string
	Content   string
	Streaming bool
}

// Transcript reassembles a frame stream into a monotonically-growing message
// list. Chunks are concatenated in arrival order onto the assistant message
// created by the first chunk of the request; content already rendered is
// never replaced or truncated.
type Transcript struct {
	messages []Message
	index    map[string]int
	current  string
}

func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// Apply folds one frame into the transcript. Unknown frame types are ignored.
func (t *Transcript) Apply(f wire.Frame) {
	switch f.Type {
	case wire.FrameUserMessage:
		t.append(Message{ID: uuid.NewString(), Role: "user", Content: f.Content})

	case wire.FrameAIChunk:
		if t.current == "" {
			id := uuid.NewString()
			t.append(Message{ID: id, Role: "assistant", Content: f.Content, Streaming: true})
			t.current = id
			return
		}
		pos := t.index[t.current]
		t.messages[pos].Content += f.Content

	case wire.FrameDone:
		t.finishCurrent()

	case wire.FrameError:
		// Partial output stays visible; the error is surfaced as a separate
		// client-local system message.
		t.finishCurrent()
		t.append(Message{ID: uuid.NewString(), Role: "system", Content: f.Content})
	}
}

func (t *Transcript) append(m Message) {
	t.index[m.ID] = len(t.messages)
	t.messages = append(t.messages, m)
}

func (t *Transcript) finishCurrent() {
	if t.current == "" {
		return
	}
	pos := t.index[t.current]
	t.messages[pos].Streaming = false
	t.current = ""
}

// Messages returns a copy of the current message list.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}
