package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"coreon/internal/storage"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "memory_test.sqlite") + "?_pragma=foreign_keys(1)"
	s, err := storage.Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecallPicksMostSimilarInChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	emb := &fakeEmbedder{vectors: map[string][]float32{
		"the cat sat":        {1, 0, 0},
		"stock prices rose":  {0, 1, 0},
		"a cat on the mat":   {0.9, 0.1, 0},
		"weather was cloudy": {0, 0.2, 0.9},
		"tell me about cats": {1, 0.05, 0},
	}}

	r := New(Config{Store: store, Embedder: emb, EmbeddingModel: "fake", TopK: 2, Logger: zerolog.Nop()})

	chat, err := store.CreateChat(ctx, "memory")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	for _, text := range []string{"the cat sat", "stock prices rose", "a cat on the mat", "weather was cloudy"} {
		m, err := store.AppendMessage(ctx, chat.ID, storage.RoleUser, text, nil)
		if err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
		r.Remember(ctx, m)
	}

	recalled, err := r.Recall(ctx, chat.ID, "tell me about cats")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recalled) != 2 {
		t.Fatalf("expected top 2, got %d", len(recalled))
	}
	if recalled[0].Content != "the cat sat" || recalled[1].Content != "a cat on the mat" {
		t.Fatalf("unexpected recall order: %q, %q", recalled[0].Content, recalled[1].Content)
	}
}

func TestRecallEmptyChat(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	r := New(Config{Store: store, Embedder: &fakeEmbedder{}, EmbeddingModel: "fake", TopK: 5, Logger: zerolog.Nop()})

	chat, err := store.CreateChat(ctx, "empty")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	recalled, err := r.Recall(ctx, chat.ID, "anything")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recalled) != 0 {
		t.Fatalf("expected no recall from empty chat, got %d", len(recalled))
	}
}

func TestRememberToleratesEmbedFailure(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	failing := &failingEmbedder{}
	r := New(Config{Store: store, Embedder: failing, EmbeddingModel: "fake", TopK: 5, Logger: zerolog.Nop()})

	chat, err := store.CreateChat(ctx, "tolerant")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	m, err := store.AppendMessage(ctx, chat.ID, storage.RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// Must not panic or propagate the failure.
	r.Remember(ctx, m)

	embs, err := store.ListEmbeddings(ctx, chat.ID)
	if err != nil {
		t.Fatalf("list embeddings: %v", err)
	}
	if len(embs) != 0 {
		t.Fatalf("expected no embeddings after failure, got %d", len(embs))
	}
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, context.DeadlineExceeded
}
