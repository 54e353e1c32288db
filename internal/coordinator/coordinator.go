// Package coordinator turns one user message into one streamed, persisted
// assistant reply.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"coreon/internal/guard"
	"coreon/internal/memory"
	"coreon/internal/metrics"
	"coreon/internal/model"
	"coreon/internal/storage"
	"coreon/internal/wire"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatBusy     = errors.New("chat busy")
)

// Sink receives frames in emission order. A Send failure means the client is
// gone; the coordinator stops generating and persists nothing further.
type Sink interface {
	Send(wire.Frame) error
}

type Coordinator struct {
	store    *storage.Store
	backend  model.Backend
	inflight *guard.Inflight
	memory   *memory.Recaller
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type Config struct {
	Store    *storage.Store
	Backend  model.Backend
	Inflight *guard.Inflight
	Memory   *memory.Recaller
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

func New(cfg Config) *Coordinator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Coordinator{
		store:    cfg.Store,
		backend:  cfg.Backend,
		inflight: cfg.Inflight,
		memory:   cfg.Memory,
		logger:   cfg.Logger,
		metrics:  m,
	}
}

// Respond validates the chat, persists the user message, streams the reply as
// ai_chunk frames and persists the assembled reply before the terminal frame.
//
// ErrChatNotFound and ErrChatBusy are returned before any frame is written so
// the caller can map them to a request-level failure. Once frames are flowing
// all failures are reported in-band as a single error frame.
func (c *Coordinator) Respond(ctx context.Context, ref ChatRef, content string, sink Sink) error {
	log := c.logger.With().Str("request_id", uuid.NewString()).Int64("chat_id", ref.ID()).Bool("persistent", ref.IsPersistent()).Logger()

	var history []model.Message
	if ref.IsPersistent() {
		if _, err := c.store.GetChat(ctx, ref.ID()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrChatNotFound
			}
			return fmt.Errorf("look up chat: %w", err)
		}

		release, acquired, err := c.inflight.Acquire(ctx, ref.ID())
		if err != nil {
			return fmt.Errorf("acquire in-flight lock: %w", err)
		}
		if !acquired {
			return ErrChatBusy
		}
		defer release()

		prior, err := c.store.ListMessages(ctx, ref.ID())
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		history = toModelMessages(prior)

		// Recall runs before the new message is persisted and embedded, so
		// the query can never recall itself into the model context.
		if c.memory != nil {
			if recalled, rerr := c.memory.Recall(ctx, ref.ID(), content); rerr != nil {
				log.Warn().Err(rerr).Msg("memory recall failed, using full history")
			} else if recalled != nil {
				history = recalled
			}
		}

		userMsg, err := c.store.AppendMessage(ctx, ref.ID(), storage.RoleUser, content, nil)
		if err != nil {
			return fmt.Errorf("persist user message: %w", err)
		}
		c.metrics.MessagesPersisted.Inc()
		if c.memory != nil {
			c.memory.Remember(ctx, userMsg)
		}
	}

	return c.stream(ctx, log, ref, content, history, sink)
}

func (c *Coordinator) stream(ctx context.Context, log zerolog.Logger, ref ChatRef, content string, history []model.Message, sink Sink) error {
	c.metrics.ResponsesStarted.Inc()

	if err := sink.Send(wire.UserMessage(content)); err != nil {
		return fmt.Errorf("send user_message frame: %w", err)
	}

	gen, err := c.backend.Generate(ctx, history, model.Message{Role: storage.RoleUser, Content: content})
	if err != nil {
		log.Error().Err(err).Msg("backend generate failed")
		return c.fail(sink, err)
	}
	defer gen.Close()

	var reply strings.Builder
	for {
		frag, rerr := gen.Recv()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			log.Error().Err(rerr).Msg("backend stream failed")
			return c.fail(sink, rerr)
		}

		if ctx.Err() != nil {
			// Client cancelled: stop the backend, never persist a partial reply.
			log.Debug().Msg("respond cancelled mid-stream")
			return ctx.Err()
		}
		if serr := sink.Send(wire.Chunk(frag)); serr != nil {
			return fmt.Errorf("send ai_chunk frame: %w", serr)
		}
		c.metrics.ChunksEmitted.Inc()
		reply.WriteString(frag)
	}

	if ref.IsPersistent() {
		name := c.backend.Name()
		assistantMsg, perr := c.store.AppendMessage(ctx, ref.ID(), storage.RoleAssistant, reply.String(), &name)
		if perr != nil {
			// Streamed chunks stay visible on the client; the reply is just
			// not durable.
			log.Error().Err(perr).Msg("failed to persist assistant message")
			return c.fail(sink, fmt.Errorf("persist assistant message: %w", perr))
		}
		c.metrics.MessagesPersisted.Inc()
		if c.memory != nil {
			c.memory.Remember(ctx, assistantMsg)
		}
	}

	if err := sink.Send(wire.Done()); err != nil {
		return fmt.Errorf("send done frame: %w", err)
	}
	log.Info().Int("reply_len", reply.Len()).Msg("respond completed")
	return nil
}

// fail emits the single terminal error frame. The original error is not
// returned: it has been delivered in-band.
func (c *Coordinator) fail(sink Sink, cause error) error {
	c.metrics.ResponsesFailed.Inc()
	if err := sink.Send(wire.Error(cause.Error())); err != nil {
		return fmt.Errorf("send error frame: %w", err)
	}
	return nil
}

func toModelMessages(msgs []storage.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
