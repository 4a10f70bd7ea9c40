// Package vectordb provides vector index adapters.
// Clean Architecture: Adapters implementing ports.VectorIndex.
// Both variants rank by cosine similarity with a deterministic tie-break
// and swap a complete snapshot atomically on rebuild, so concurrent
// searches never observe a half-built index.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/finrag/finrag-go/internal/domain/entities"
	"github.com/finrag/finrag-go/internal/domain/ports"
)

// snapshot is one complete, immutable index generation.
type snapshot struct {
	docs []entities.Document // embeddings attached
}

// MemoryIndex keeps all document embeddings in process memory.
type MemoryIndex struct {
	embedder ports.EmbeddingService
	logger   *logrus.Logger
	current  atomic.Pointer[snapshot]
}

// NewMemoryIndex creates an empty in-memory vector index.
func NewMemoryIndex(embedder ports.EmbeddingService, logger *logrus.Logger) *MemoryIndex {
	if logger == nil {
		logger = logrus.New()
	}
	return &MemoryIndex{embedder: embedder, logger: logger}
}

// Rebuild embeds every document and swaps the new generation in.
// The previous generation keeps serving until the swap.
func (m *MemoryIndex) Rebuild(ctx context.Context, docs []entities.Document) error {
	next, err := embedAll(ctx, m.embedder, docs)
	if err != nil {
		return err
	}
	m.current.Store(next)
	m.logger.WithField("documents", len(next.docs)).Debug("vector index rebuilt")
	return nil
}

// Search embeds the query and returns up to topK nearest documents.
// An empty index yields an empty result, never an error.
func (m *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]entities.ScoredDocument, error) {
	snap := m.current.Load()
	if snap == nil || len(snap.docs) == 0 || topK <= 0 {
		return nil, nil
	}
	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return rank(snap, queryVec, topK), nil
}

// Size returns the number of indexed documents.
func (m *MemoryIndex) Size() int {
	if snap := m.current.Load(); snap != nil {
		return len(snap.docs)
	}
	return 0
}

// embedAll builds a new snapshot, leaving the input documents untouched.
func embedAll(ctx context.Context, embedder ports.EmbeddingService, docs []entities.Document) (*snapshot, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(docs), len(embeddings))
	}
	next := &snapshot{docs: make([]entities.Document, len(docs))}
	for i, d := range docs {
		d.Embedding = embeddings[i]
		next.docs[i] = d
	}
	return next, nil
}

// rank scores every document against the query vector and returns the
// topK best, descending similarity, ties by ascending row index then
// source file name.
func rank(snap *snapshot, queryVec []float32, topK int) []entities.ScoredDocument {
	scored := make([]entities.ScoredDocument, len(snap.docs))
	for i, d := range snap.docs {
		scored[i] = entities.ScoredDocument{Document: d, Score: cosineSimilarity(queryVec, d.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Document.Source.RowIndex != scored[j].Document.Source.RowIndex {
			return scored[i].Document.Source.RowIndex < scored[j].Document.Source.RowIndex
		}
		return scored[i].Document.Source.File < scored[j].Document.Source.File
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
