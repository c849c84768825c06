package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brunobiangulo/legalgraph/law"
)

// Tag represents a row in the tags table.
type Tag struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Type law.TagType `json:"tag_type"`
}

// TagMention says that an article version mentioned a tag.
type TagMention struct {
	VersionID int64
	Type      law.TagType
	Name      string
}

// PersistTags upserts every mentioned tag and links it to the versions
// that mentioned it and to the law, all in one transaction. Names match
// case-insensitively; the first stored spelling is kept. Returns the
// number of distinct tags linked to the law.
func (s *Store) PersistTags(ctx context.Context, lawID int64, mentions []TagMention) (int, error) {
	linked := make(map[int64]bool)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `
			INSERT INTO tags (name, tag_type) VALUES (?, ?)
			ON CONFLICT(name, tag_type) DO UPDATE SET name = tags.name
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer upsert.Close()

		for _, m := range mentions {
			var tagID int64
			if err := upsert.QueryRowContext(ctx, m.Name, string(m.Type)).Scan(&tagID); err != nil {
				return fmt.Errorf("upserting tag %q: %w", m.Name, err)
			}
			if m.VersionID != 0 {
				if _, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO article_version_tags (version_id, tag_id) VALUES (?, ?)",
					m.VersionID, tagID); err != nil {
					return fmt.Errorf("linking tag %q to version %d: %w", m.Name, m.VersionID, err)
				}
			}
			if !linked[tagID] {
				if _, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO law_tags (law_id, tag_id) VALUES (?, ?)",
					lawID, tagID); err != nil {
					return fmt.Errorf("linking tag %q to law %d: %w", m.Name, lawID, err)
				}
				linked[tagID] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(linked), nil
}

// LawTags returns the tags linked to a law.
func (s *Store) LawTags(ctx context.Context, lawID int64) ([]Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.name, t.tag_type FROM tags t
		JOIN law_tags lt ON lt.tag_id = t.id
		WHERE lt.law_id = ?
		ORDER BY t.tag_type, t.name
	`, lawID)
}

// VersionTags returns the tags linked to an article version.
func (s *Store) VersionTags(ctx context.Context, versionID int64) ([]Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.name, t.tag_type FROM tags t
		JOIN article_version_tags vt ON vt.tag_id = t.id
		WHERE vt.version_id = ?
		ORDER BY t.tag_type, t.name
	`, versionID)
}

func (s *Store) queryTags(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		var tagType string
		if err := rows.Scan(&t.ID, &t.Name, &tagType); err != nil {
			return nil, err
		}
		t.Type = law.TagType(tagType)
		out = append(out, t)
	}
	return out, rows.Err()
}
