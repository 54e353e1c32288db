package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coreon/internal/coordinator"
	"coreon/internal/storage"
	"coreon/internal/wire"
)

// encoderSink adapts the wire encoder to the coordinator's frame sink and
// remembers whether any frame made it onto the wire, which decides whether a
// failure can still be reported as an HTTP status.
type encoderSink struct {
	enc   *wire.Encoder
	wrote bool
}

func (s *encoderSink) Send(f wire.Frame) error {
	if err := s.enc.Encode(f); err != nil {
		return err
	}
	s.wrote = true
	return nil
}

func (s *Server) respond(c *gin.Context, ref coordinator.ChatRef) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role != "" && req.Role != storage.RoleUser {
		errJSON(c, http.StatusBadRequest, "role must be 'user'")
		return
	}

	if ref.IsPersistent() {
		// Existence before the limiter: a request that can only be answered
		// with 404 must not consume a rate-limit token.
		if _, err := s.store.GetChat(c.Request.Context(), ref.ID()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.metrics.ResponsesRejected.Inc()
				errJSON(c, http.StatusNotFound, "chat not found")
				return
			}
			s.logger.Error().Err(err).Int64("chat_id", ref.ID()).Msg("look up chat failed")
			errJSON(c, http.StatusInternalServerError, "failed to load chat")
			return
		}

		if s.limiter != nil {
			allowed, _, resetAt, err := s.limiter.Allow(c.Request.Context(), ref.ID(), time.Now())
			if err != nil {
				s.logger.Error().Err(err).Int64("chat_id", ref.ID()).Msg("rate limit check failed")
				errJSON(c, http.StatusInternalServerError, "rate limit check failed")
				return
			}
			if !allowed {
				s.metrics.ResponsesRejected.Inc()
				c.Header("Retry-After", resetAt.UTC().Format(http.TimeFormat))
				errJSON(c, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")

	sink := &encoderSink{enc: wire.NewEncoder(c.Writer)}
	err := s.coordinator.Respond(c.Request.Context(), ref, req.Content, sink)
	switch {
	case err == nil:
	case errors.Is(err, coordinator.ErrChatNotFound):
		s.metrics.ResponsesRejected.Inc()
		errJSON(c, http.StatusNotFound, "chat not found")
	case errors.Is(err, coordinator.ErrChatBusy):
		s.metrics.ResponsesRejected.Inc()
		errJSON(c, http.StatusConflict, "a response is already in flight for this chat")
	default:
		// Headers are committed once a frame has been written; after that the
		// failure has either been reported in-band or the client is gone.
		if !sink.wrote {
			s.logger.Error().Err(err).Msg("respond failed before streaming")
			errJSON(c, http.StatusInternalServerError, "failed to respond")
			return
		}
		s.logger.Debug().Err(err).Msg("respond aborted mid-stream")
	}
}
