// Package index maintains a per-run vector collection of document segments
// for semantic search.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/JaimeStill/ldaa/internal/workflow"
)

// DefaultResults is the number of hits returned when a search requests none.
const DefaultResults = 5

var (
	ErrNotIndexed = errors.New("run has no index")
	ErrEmptyQuery = errors.New("search query must not be empty")
)

// Hit is a single search result.
type Hit struct {
	ID         string              `json:"id"`
	SegmentID  string              `json:"segment_id"`
	Document   workflow.DocumentID `json:"document"`
	Kind       string              `json:"kind"`
	Content    string              `json:"content"`
	Similarity float32             `json:"similarity"`
}

// Store indexes segments into chromem collections, one per run.
type Store struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// New opens the persistent vector database at cfg.Path and connects the
// embedding model.
func New(cfg *Config, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	token := cfg.Token
	if token == "" {
		// local OpenAI-compatible servers ignore the token but the client requires one
		token = "local"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return NewStore(db, embedder, cfg, logger), nil
}

// NewStore creates a Store over an open database and embedder.
func NewStore(db *chromem.DB, embedder embeddings.Embedder, cfg *Config, logger *slog.Logger) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		logger: logger.With("system", "index"),
	}
}

// Collection returns the collection name used for a run.
func Collection(runID string) string {
	return "run-" + runID
}

// Index replaces the run's collection with chunks of the given segments.
func (s *Store) Index(ctx context.Context, runID string, segments []workflow.Segment) (*workflow.IndexSummary, error) {
	name := Collection(runID)

	if err := s.db.DeleteCollection(name); err != nil {
		return nil, fmt.Errorf("reset collection %s: %w", name, err)
	}

	collection, err := s.db.GetOrCreateCollection(name, map[string]string{"run_id": runID}, s.embedFunc())
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	var docs []chromem.Document
	for _, seg := range segments {
		chunks, err := s.splitter.SplitText(seg.Text)
		if err != nil {
			return nil, fmt.Errorf("split segment %s: %w", seg.ID, err)
		}
		for i, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			docs = append(docs, chromem.Document{
				ID:      fmt.Sprintf("%s_chunk_%d", seg.ID, i),
				Content: chunk,
				Metadata: map[string]string{
					"segment_id": seg.ID,
					"document":   string(seg.DocumentID),
					"kind":       string(seg.Kind),
					"position":   strconv.Itoa(seg.Position),
				},
			})
		}
	}

	summary := &workflow.IndexSummary{
		Collection: name,
		Segments:   len(segments),
		Chunks:     len(docs),
	}

	if len(docs) == 0 {
		return summary, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("add chunks: %w", err)
	}

	s.logger.InfoContext(
		ctx, "run indexed",
		"run_id", runID,
		"segments", summary.Segments,
		"chunks", summary.Chunks,
	)

	return summary, nil
}

// Search returns up to k chunks of the run most similar to query.
func (s *Store) Search(ctx context.Context, runID, query string, k int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultResults
	}

	collection := s.db.GetCollection(Collection(runID), s.embedFunc())
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, runID)
	}

	count := collection.Count()
	if count == 0 {
		return []Hit{}, nil
	}

	results, err := collection.Query(ctx, query, min(k, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:         r.ID,
			SegmentID:  r.Metadata["segment_id"],
			Document:   workflow.DocumentID(r.Metadata["document"]),
			Kind:       r.Metadata["kind"],
			Content:    r.Content,
			Similarity: r.Similarity,
		}
	}

	return hits, nil
}

// Drop removes the run's collection.
func (s *Store) Drop(runID string) error {
	return s.db.DeleteCollection(Collection(runID))
}

func (s *Store) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}
