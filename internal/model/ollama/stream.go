package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"coreon/internal/model"
)

// stream reads Ollama's newline-delimited chat response line by line. Each
// line carries one fragment; the final line has done=true.
type stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

func newStream(body io.ReadCloser) *stream {
	return &stream{body: body, reader: bufio.NewReader(body)}
}

var _ model.Stream = (*stream)(nil)

func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if err != nil && len(trimmed) == 0 {
			s.done = true
			if err == io.EOF {
				// Stream ended without a done marker: treat as completion.
				return "", io.EOF
			}
			return "", &model.BackendError{Kind: model.ErrKindConnection, Message: "stream read failed", Cause: err}
		}
		if len(trimmed) == 0 {
			continue
		}

		var cl chatLine
		if uerr := json.Unmarshal(trimmed, &cl); uerr != nil {
			s.done = true
			return "", &model.BackendError{Kind: model.ErrKindResponse, Message: "malformed stream line", Cause: uerr}
		}
		if cl.Error != "" {
			s.done = true
			return "", classifyMessage(cl.Error)
		}

		if cl.Done {
			s.done = true
			if cl.Message.Content != "" {
				return cl.Message.Content, nil
			}
			return "", io.EOF
		}
		if cl.Message.Content != "" {
			return cl.Message.Content, nil
		}
	}
}

func (s *stream) Close() error {
	return s.body.Close()
}
