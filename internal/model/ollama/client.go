// Package ollama implements the model backend against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coreon/internal/model"
)

type Config struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	HTTPClient     *http.Client
	Timeout        time.Duration
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.HTTPClient == nil {
		// No client-level timeout: a streaming response stays open for the
		// whole generation. Deadlines come from the request context.
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

var _ model.Backend = (*Client)(nil)

func (c *Client) Name() string {
	return c.cfg.Model
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, history []model.Message, next model.Message) (model.Stream, error) {
	msgs := make([]chatMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: next.Role, Content: next.Content})

	body, err := json.Marshal(chatPayload{Model: c.cfg.Model, Messages: msgs, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &model.BackendError{Kind: model.ErrKindConnection, Message: "ollama unreachable", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, classifyStatus(resp)
	}

	return newStream(resp.Body), nil
}

type embedPayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cfg.EmbeddingModel == "" {
		return nil, &model.BackendError{Kind: model.ErrKindResponse, Message: "no embedding model configured"}
	}

	body, err := json.Marshal(embedPayload{Model: c.cfg.EmbeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &model.BackendError{Kind: model.ErrKindConnection, Message: "ollama unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var out embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&out); err != nil {
		return nil, &model.BackendError{Kind: model.ErrKindResponse, Message: "decode embedding response", Cause: err}
	}
	if out.Error != "" {
		return nil, classifyMessage(out.Error)
	}
	if len(out.Embedding) == 0 {
		return nil, &model.BackendError{Kind: model.ErrKindResponse, Message: "empty embedding in response"}
	}
	return out.Embedding, nil
}

func classifyStatus(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)

	msg := strings.TrimSpace(body.Error)
	if msg == "" {
		msg = fmt.Sprintf("ollama status %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &model.BackendError{Kind: model.ErrKindModelNotFound, Message: msg}
	}
	return classifyMessage(msg)
}

func classifyMessage(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not found"):
		return &model.BackendError{Kind: model.ErrKindModelNotFound, Message: msg}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "context window"):
		return &model.BackendError{Kind: model.ErrKindContextLength, Message: msg}
	default:
		return &model.BackendError{Kind: model.ErrKindResponse, Message: msg}
	}
}
