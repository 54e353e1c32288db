// Package memory recalls the most relevant prior messages of a chat as model
// context, using embeddings stored alongside the messages.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"coreon/internal/model"
	"coreon/internal/storage"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Recaller struct {
	store    *storage.Store
	embedder Embedder
	embModel string
	topK     int
	logger   zerolog.Logger
}

type Config struct {
	Store          *storage.Store
	Embedder       Embedder
	EmbeddingModel string
	TopK           int
	Logger         zerolog.Logger
}

func New(cfg Config) *Recaller {
	if cfg.TopK < 1 {
		cfg.TopK = 5
	}
	return &Recaller{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		embModel: cfg.EmbeddingModel,
		topK:     cfg.TopK,
		logger:   cfg.Logger,
	}
}

// Remember embeds a persisted message and stores the vector. Embedding
// failures never fail the turn; the message simply stays unindexed.
func (r *Recaller) Remember(ctx context.Context, msg storage.Message) {
	vec, err := r.embedder.Embed(ctx, msg.Content)
	if err != nil {
		r.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("failed to embed message")
		return
	}
	_, err = r.store.SaveEmbedding(ctx, storage.Embedding{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		Model:     r.embModel,
		Vector:    vec,
	})
	if err != nil {
		r.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("failed to store embedding")
	}
}

// Recall returns the top-k stored messages most similar to the query, in
// their original chronological order. Messages without embeddings are
// invisible to recall.
func (r *Recaller) Recall(ctx context.Context, chatID int64, query string) ([]model.Message, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	embs, err := r.store.ListEmbeddings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(embs) == 0 {
		return nil, nil
	}

	msgs, err := r.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]storage.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}

	type scored struct {
		msg   storage.Message
		score float64
	}
	candidates := make([]scored, 0, len(embs))
	for _, e := range embs {
		m, ok := byID[e.MessageID]
		if !ok {
			continue
		}
		candidates = append(candidates, scored{msg: m, score: cosine(queryVec, e.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].msg.ID < candidates[j].msg.ID })

	out := make([]model.Message, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, model.Message{Role: c.msg.Role, Content: c.msg.Content})
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
