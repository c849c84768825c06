package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Source represents a row in the sources table.
type Source struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	PublishedAt string `json:"published_at,omitempty"`
	Status      string `json:"status"`
	Metadata    string `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk represents a row in the chunks table.
type Chunk struct {
	ID          int64  `json:"id"`
	SourceID    string `json:"source_id"`
	Index       int    `json:"chunk_index"`
	Content     string `json:"content"`
	Heading     string `json:"heading,omitempty"`
	TokenCount  int    `json:"token_count"`
	ContentHash string `json:"content_hash"`
}

// UpsertSource inserts a source or refreshes the row with the same path,
// keeping its id. Returns the source id.
func (s *Store) UpsertSource(ctx context.Context, src Source) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sources (id, path, filename, format, content_hash, published_at, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			published_at = COALESCE(excluded.published_at, sources.published_at),
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, src.ID, src.Path, src.Filename, src.Format, src.ContentHash,
		nullString(src.PublishedAt), src.Status, nullString(src.Metadata)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting source %s: %w", src.Path, err)
	}
	return id, nil
}

const sourceColumns = `id, path, filename, format, content_hash, published_at, status, metadata, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (*Source, error) {
	src := &Source{}
	var published, metadata sql.NullString
	if err := row.Scan(&src.ID, &src.Path, &src.Filename, &src.Format, &src.ContentHash,
		&published, &src.Status, &metadata, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.PublishedAt = published.String
	src.Metadata = metadata.String
	return src, nil
}

// GetSource retrieves a source by id.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return src, nil
}

// GetSourceByPath retrieves a source by its file path.
func (s *Store) GetSourceByPath(ctx context.Context, path string) (*Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE path = ?", path))
	if err != nil {
		return nil, notFound(err)
	}
	return src, nil
}

// ListSources returns all sources, newest first.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sourceColumns+" FROM sources ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// UpdateSourceStatus updates just the status field.
func (s *Store) UpdateSourceStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sources SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteSource removes a source and its chunks. Laws built from it stay
// and lose their source link.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks atomically swaps the chunks of a source for a new set.
// Chunk indexes are taken from the slice order.
func (s *Store) ReplaceChunks(ctx context.Context, sourceID string, chunks []Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (source_id, chunk_index, content, heading, token_count, content_hash)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			hash := sha256.Sum256([]byte(c.Content))
			res, err := stmt.ExecContext(ctx, sourceID, i, c.Content,
				nullString(c.Heading), c.TokenCount, hex.EncodeToString(hash[:]))
			if err != nil {
				return err
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replacing chunks for %s: %w", sourceID, err)
	}
	return ids, nil
}

// GetChunks returns the chunks of a source in index order.
func (s *Store) GetChunks(ctx context.Context, sourceID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, chunk_index, content, heading, token_count, content_hash
		FROM chunks WHERE source_id = ? ORDER BY chunk_index
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var heading sql.NullString
		var tokens sql.NullInt64
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Index, &c.Content,
			&heading, &tokens, &c.ContentHash); err != nil {
			return nil, err
		}
		c.Heading = heading.String
		c.TokenCount = int(tokens.Int64)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
