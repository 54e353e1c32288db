package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coreon/internal/wire"
)

// Client talks to a coreon server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

type Config struct {
	BaseURL string
	// HTTPClient overrides the transport; the default has no timeout so that
	// long response streams are bounded by the request context only.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		logger:  cfg.Logger,
	}
}

// Chat mirrors the server's chat representation.
type Chat struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// ChatMessage is a persisted message as returned by the server.
type ChatMessage struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ModelName *string   `json:"model_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

func (c *Client) CreateChat(ctx context.Context, title string) (Chat, error) {
	var chat Chat
	err := c.doJSON(ctx, http.MethodPost, "/api/chats", map[string]string{"title": title}, &chat)
	return chat, err
}

func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	err := c.doJSON(ctx, http.MethodGet, "/api/chats", nil, &chats)
	return chats, err
}

func (c *Client) RenameChat(ctx context.Context, id int64, title string) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/chats/%d", id), map[string]string{"title": title}, nil)
}

func (c *Client) DeleteChat(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/chats/%d", id), nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, id int64) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", id), nil, &msgs)
	return msgs, err
}

// Respond sends content to a persistent chat and folds the resulting frame
// stream into t. onFrame, when non-nil, observes every frame as it arrives.
func (c *Client) Respond(ctx context.Context, chatID int64, content string, t *Transcript, onFrame func(wire.Frame)) error {
	return c.stream(ctx, fmt.Sprintf("/api/chats/%d/respond", chatID), content, t, onFrame)
}

// RespondVolatile is Respond for a one-off session that the server does not
// persist.
func (c *Client) RespondVolatile(ctx context.Context, content string, t *Transcript, onFrame func(wire.Frame)) error {
	return c.stream(ctx, "/api/respond", content, t, onFrame)
}

func (c *Client) stream(ctx context.Context, path, content string, t *Transcript, onFrame func(wire.Frame)) error {
	body, err := json.Marshal(map[string]string{"content": content, "role": "user"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("respond request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	dec := wire.NewDecoder(c.logger)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				t.Apply(f)
				if onFrame != nil {
					onFrame(f)
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read response stream: %w", readErr)
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}
