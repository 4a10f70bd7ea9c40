// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
// This follows Dependency Inversion Principle (DIP) strictly.
package ports

import (
	"context"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
// Interface Segregation: Only embedding responsibility, nothing else.
// Assumed deterministic for identical input and model-version-pinned.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates text responses from a language model.
// Single Responsibility: Only LLM inference, no embedding logic.
type LLMService interface {
	// Generate produces a response for the full prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex holds document embeddings and answers nearest-neighbor
// queries by cosine similarity. Rebuild replaces the whole index
// atomically: concurrent searches see either the old complete index or
// the new complete one, never a partial build.
type VectorIndex interface {
	// Rebuild embeds all documents and swaps them in as the new index.
	Rebuild(ctx context.Context, docs []entities.Document) error

	// Search embeds the query and returns up to topK documents ranked by
	// descending similarity, ties broken by ascending row index then
	// source file name.
	Search(ctx context.Context, query string, topK int) ([]entities.ScoredDocument, error)

	// Size returns the number of indexed documents.
	Size() int
}

// TableSource supplies the already-parsed structured tables.
type TableSource interface {
	// Load reads every configured source into ordered, typed tables.
	Load(ctx context.Context) ([]*entities.Table, error)
}

// SessionStore tracks per-session conversation history. Appends for the
// same session id are serialized; unknown ids are never an error.
type SessionStore interface {
	// GetOrCreate returns the session for id, allocating a new unique id
	// and empty session when id is absent or unknown.
	GetOrCreate(id string) (string, *entities.Session)

	// History returns a copy of the session's turns, oldest first.
	History(id string) []entities.Turn

	// Append adds a turn, evicting the oldest once the cap is exceeded.
	Append(id string, turn entities.Turn)

	// Reset drops the session's history.
	Reset(id string)
}

// FileWatcher monitors data files for changes.
type FileWatcher interface {
	// Watch starts monitoring the given files and emits their paths on change.
	Watch(ctx context.Context, paths []string) (<-chan string, error)

	// Stop stops the watcher.
	Stop() error
}
