package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"coreon/internal/model"
)

func chatServer(t *testing.T, lines []string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"model 'missing' not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
}

func collect(t *testing.T, s model.Stream) []string {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		out = append(out, frag)
	}
}

func TestGenerateStreamsFragmentsInOrder(t *testing.T) {
	srv := chatServer(t, []string{
		`{"message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"message":{"role":"assistant","content":" there"},"done":false}`,
		`{"message":{"role":"assistant","content":"!"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	}, http.StatusOK)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gemma3:12b"})
	s, err := c.Generate(context.Background(), nil, model.Message{Role: "user", Content: "hello"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	frags := collect(t, s)
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d: %v", len(frags), frags)
	}
	joined := frags[0] + frags[1] + frags[2]
	if joined != "Hi there!" {
		t.Fatalf("reassembled %q", joined)
	}
}

func TestGenerateFinalLineMayCarryContent(t *testing.T) {
	srv := chatServer(t, []string{
		`{"message":{"role":"assistant","content":"Par"},"done":false}`,
		`{"message":{"role":"assistant","content":"is"},"done":true}`,
	}, http.StatusOK)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gemma3:12b"})
	s, err := c.Generate(context.Background(), nil, model.Message{Role: "user", Content: "capital of France?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	frags := collect(t, s)
	if len(frags) != 2 || frags[0]+frags[1] != "Paris" {
		t.Fatalf("unexpected fragments %v", frags)
	}
}

func TestGenerateModelNotFound(t *testing.T) {
	srv := chatServer(t, nil, http.StatusNotFound)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "missing"})
	_, err := c.Generate(context.Background(), nil, model.Message{Role: "user", Content: "hi"})
	if !model.IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestGenerateMidStreamError(t *testing.T) {
	srv := chatServer(t, []string{
		`{"message":{"role":"assistant","content":"Par"},"done":false}`,
		`{"error":"llama runner exited"}`,
	}, http.StatusOK)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gemma3:12b"})
	s, err := c.Generate(context.Background(), nil, model.Message{Role: "user", Content: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	defer s.Close()

	frag, err := s.Recv()
	if err != nil || frag != "Par" {
		t.Fatalf("expected first fragment, got %q %v", frag, err)
	}
	if _, err := s.Recv(); err == nil {
		t.Fatalf("expected backend error after error line")
	}
}

func TestGenerateContextLengthClassified(t *testing.T) {
	srv := chatServer(t, []string{
		`{"error":"prompt exceeds context length"}`,
	}, http.StatusOK)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gemma3:12b"})
	s, err := c.Generate(context.Background(), nil, model.Message{Role: "user", Content: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	defer s.Close()

	if _, err := s.Recv(); !model.IsContextLength(err) {
		t.Fatalf("expected context-length error, got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embedPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode embed request: %v", err)
		}
		if req.Model != "nomic-embed-text:latest" {
			t.Errorf("unexpected embed model %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "gemma3:12b", EmbeddingModel: "nomic-embed-text:latest"})
	vec, err := c.Embed(context.Background(), "remember this")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
}
