package index_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"

	"github.com/JaimeStill/ldaa/internal/index"
	"github.com/JaimeStill/ldaa/internal/workflow"
)

var vocabulary = []string{"register", "notify", "public"}

// keywordEmbedder embeds text as a normalized keyword presence vector with a
// constant bias dimension.
type keywordEmbedder struct {
	err error
}

func (e keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = embed(text)
	}
	return vectors, nil
}

func (e keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return embed(text), nil
}

func embed(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{1}
	for _, word := range vocabulary {
		if strings.Contains(lower, word) {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}

	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func newStore(t *testing.T, embedder keywordEmbedder, chunkSize int) *index.Store {
	t.Helper()

	cfg := &index.Config{ChunkSize: chunkSize, ChunkOverlap: chunkSize / 10}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("config: %v", err)
	}

	return index.NewStore(chromem.NewDB(), embedder, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func segments() []workflow.Segment {
	return []workflow.Segment{
		{ID: "doc_a_seg_0", Text: "Providers shall register every system.", DocumentID: workflow.DocumentA, Kind: workflow.KindArticle, Position: 0},
		{ID: "doc_a_seg_1", Text: "The register is public.", DocumentID: workflow.DocumentA, Kind: workflow.KindArticle, Position: 1},
		{ID: "doc_b_seg_0", Text: "Operators shall notify the authority.", DocumentID: workflow.DocumentB, Kind: workflow.KindSection, Position: 0},
	}
}

func TestIndexAndSearch(t *testing.T) {
	store := newStore(t, keywordEmbedder{}, 500)
	ctx := context.Background()

	summary, err := store.Index(ctx, "run-1", segments())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	want := workflow.IndexSummary{Collection: "run-run-1", Segments: 3, Chunks: 3}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}

	hits, err := store.Search(ctx, "run-1", "who must notify?", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}

	top := hits[0]
	if top.SegmentID != "doc_b_seg_0" || top.Document != workflow.DocumentB || top.Kind != "section" {
		t.Errorf("top hit = %+v", top)
	}
	if top.ID != "doc_b_seg_0_chunk_0" {
		t.Errorf("chunk id = %s", top.ID)
	}
	if hits[1].Similarity > top.Similarity {
		t.Error("hits should be ordered by similarity")
	}
}

func TestIndexReplacesCollection(t *testing.T) {
	store := newStore(t, keywordEmbedder{}, 500)
	ctx := context.Background()

	if _, err := store.Index(ctx, "r", segments()); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if _, err := store.Index(ctx, "r", segments()[:1]); err != nil {
		t.Fatalf("re-index failed: %v", err)
	}

	hits, err := store.Search(ctx, "r", "register", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].SegmentID != "doc_a_seg_0" {
		t.Errorf("hits = %+v, want only the re-indexed segment", hits)
	}
}

func TestIndexSplitsLongSegments(t *testing.T) {
	store := newStore(t, keywordEmbedder{}, 40)

	long := workflow.Segment{
		ID:         "doc_a_seg_0",
		Text:       strings.Repeat("Providers shall register each system with the authority. ", 4),
		DocumentID: workflow.DocumentA,
		Kind:       workflow.KindParagraph,
	}

	summary, err := store.Index(context.Background(), "r", []workflow.Segment{long})
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if summary.Segments != 1 || summary.Chunks < 2 {
		t.Errorf("summary = %+v, want multiple chunks", summary)
	}
}

func TestIndexEmpty(t *testing.T) {
	store := newStore(t, keywordEmbedder{}, 500)
	ctx := context.Background()

	summary, err := store.Index(ctx, "r", nil)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if summary.Chunks != 0 {
		t.Errorf("chunks = %d, want 0", summary.Chunks)
	}

	hits, err := store.Search(ctx, "r", "register", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want empty", hits)
	}
}

func TestIndexEmbedderFailure(t *testing.T) {
	failure := errors.New("embedding server offline")
	store := newStore(t, keywordEmbedder{err: failure}, 500)

	if _, err := store.Index(context.Background(), "r", segments()); !errors.Is(err, failure) {
		t.Errorf("err = %v, want embedder failure", err)
	}
}

func TestSearchErrors(t *testing.T) {
	store := newStore(t, keywordEmbedder{}, 500)
	ctx := context.Background()

	if _, err := store.Search(ctx, "missing", "register", 3); !errors.Is(err, index.ErrNotIndexed) {
		t.Errorf("err = %v, want ErrNotIndexed", err)
	}

	if _, err := store.Index(ctx, "r", segments()); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if _, err := store.Search(ctx, "r", "  ", 3); !errors.Is(err, index.ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}

	if err := store.Drop("r"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, err := store.Search(ctx, "r", "register", 3); !errors.Is(err, index.ErrNotIndexed) {
		t.Errorf("err after drop = %v, want ErrNotIndexed", err)
	}
}

func TestConfigFinalize(t *testing.T) {
	var cfg index.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if cfg.Enabled {
		t.Error("index should be disabled by default")
	}
	if cfg.Path != "data/index" || cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Errorf("defaults = %+v", cfg)
	}

	t.Setenv("TEST_INDEX_ENABLED", "true")
	t.Setenv("TEST_INDEX_MODEL", "mxbai-embed-large")

	env := &index.Env{Enabled: "TEST_INDEX_ENABLED", Model: "TEST_INDEX_MODEL"}
	cfg = index.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !cfg.Enabled || cfg.Model != "mxbai-embed-large" {
		t.Errorf("env overrides = %+v", cfg)
	}

	bad := index.Config{ChunkSize: 100, ChunkOverlap: 100}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error when overlap reaches chunk size")
	}
}
