// Package sqlite implements the local store tier on an embedded SQLite
// database. It is the always-available fallback when the cloud tier is
// unreachable or unconfigured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/retakeai/retake/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	metadata TEXT NOT NULL,
	vector TEXT NOT NULL
);`

// Store implements store.Local. Documents are ranked with a deterministic
// hashed token-overlap score computed in-process, so the local tier works
// with no external embedding service at all.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (and if needed creates) the database at path.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("local.path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			logger.Warn("Failed to close sqlite after schema error", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Upsert writes documents keyed by content-hash id; re-ingestion of the same
// id overwrites in place.
func (s *Store) Upsert(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := `
INSERT INTO documents (id, document, metadata, vector)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	document = excluded.document,
	metadata = excluded.metadata,
	vector = excluded.vector`
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document id is required")
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		vecJSON, err := json.Marshal(embedText(doc.Text))
		if err != nil {
			return fmt.Errorf("marshal vector for %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, doc.ID, doc.Text, string(metaJSON), string(vecJSON)); err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query ranks stored documents against the query text, ascending by
// distance. Entity filters are an OR across the team slug fields; the map
// filter is exact; both are AND-combined when present.
func (s *Store) Query(ctx context.Context, text string, filters store.Filters, limit int) ([]store.Result, error) {
	where := "1 = 1"
	var args []any
	if filters.TeamSlug != "" {
		where += ` AND (json_extract(metadata, '$.winner_slug') = ?
			OR json_extract(metadata, '$.team_a_slug') = ?
			OR json_extract(metadata, '$.team_b_slug') = ?)`
		args = append(args, filters.TeamSlug, filters.TeamSlug, filters.TeamSlug)
	}
	if filters.MapName != "" {
		where += ` AND json_extract(metadata, '$.map_name') = ?`
		args = append(args, filters.MapName)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document, metadata, vector FROM documents WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	query := embedText(text)
	var results []store.Result
	for rows.Next() {
		var (
			id       string
			document string
			metaJSON string
			vecJSON  string
		)
		if err := rows.Scan(&id, &document, &metaJSON, &vecJSON); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			s.logger.Warn("Skipping document with corrupt metadata", zap.String("id", id), zap.Error(err))
			continue
		}
		var vector []float32
		if err := json.Unmarshal([]byte(vecJSON), &vector); err != nil {
			s.logger.Warn("Skipping document with corrupt vector", zap.String("id", id), zap.Error(err))
			continue
		}
		results = append(results, store.Result{
			ID:       id,
			Document: document,
			Metadata: metadata,
			Distance: overlapDistance(query, vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
