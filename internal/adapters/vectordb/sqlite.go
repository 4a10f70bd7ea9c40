// sqlite.go is the persistent index variant: the same ranking semantics
// as MemoryIndex, with embeddings cached in SQLite so a restart does not
// pay the full embedding cost again.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/finrag/finrag-go/internal/domain/entities"
	"github.com/finrag/finrag-go/internal/domain/ports"
)

// SQLiteIndex implements ports.VectorIndex with SQLite-backed
// persistence. Searches are served from an in-memory snapshot; SQLite
// only persists generations across restarts. Rebuild writes the new
// generation in one transaction and swaps the snapshot afterwards.
type SQLiteIndex struct {
	embedder ports.EmbeddingService
	logger   *logrus.Logger
	db       *sql.DB
	current  atomic.Pointer[snapshot]
}

// NewSQLiteIndex opens (or creates) the index database under dataPath
// and restores the last persisted generation, if any.
func NewSQLiteIndex(dataPath string, embedder ports.EmbeddingService, logger *logrus.Logger) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{embedder: embedder, logger: logger, db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := idx.restore(); err != nil {
		db.Close()
		return nil, fmt.Errorf("restoring persisted index: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source_file TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (source_file, row_index)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// restore loads the persisted generation into the serving snapshot.
func (s *SQLiteIndex) restore() error {
	rows, err := s.db.Query(`
		SELECT source_file, row_index, text, embedding
		FROM documents
		ORDER BY source_file, row_index
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var docs []entities.Document
	for rows.Next() {
		var d entities.Document
		var embeddingJSON []byte
		if err := rows.Scan(&d.Source.File, &d.Source.RowIndex, &d.Text, &embeddingJSON); err != nil {
			return err
		}
		if err := json.Unmarshal(embeddingJSON, &d.Embedding); err != nil {
			continue // skip corrupted embeddings
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(docs) > 0 {
		s.current.Store(&snapshot{docs: docs})
		s.logger.WithField("documents", len(docs)).Info("restored persisted vector index")
	}
	return nil
}

// Rebuild embeds all documents, persists them as the new generation, and
// swaps the serving snapshot. Readers see the old generation until then.
func (s *SQLiteIndex) Rebuild(ctx context.Context, docs []entities.Document) error {
	next, err := embedAll(ctx, s.embedder, docs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (source_file, row_index, text, embedding)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range next.docs {
		embeddingJSON, err := json.Marshal(d.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Source.File, d.Source.RowIndex, d.Text, embeddingJSON); err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	s.current.Store(next)
	s.logger.WithField("documents", len(next.docs)).Debug("persistent vector index rebuilt")
	return nil
}

// Search embeds the query and ranks the served snapshot.
func (s *SQLiteIndex) Search(ctx context.Context, query string, topK int) ([]entities.ScoredDocument, error) {
	snap := s.current.Load()
	if snap == nil || len(snap.docs) == 0 || topK <= 0 {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return rank(snap, queryVec, topK), nil
}

// Size returns the number of indexed documents.
func (s *SQLiteIndex) Size() int {
	if snap := s.current.Load(); snap != nil {
		return len(snap.docs)
	}
	return 0
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
