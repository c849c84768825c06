package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brunobiangulo/legalgraph/law"
)

// Law represents a row in the laws table. EnactmentDate is an ISO date
// ("2006-01-02") or "" when unknown.
type Law struct {
	ID             int64         `json:"id"`
	OfficialNumber string        `json:"official_number"`
	Slug           string        `json:"slug"`
	Type           law.Type      `json:"type"`
	Category       string        `json:"category"`
	EnactmentDate  string        `json:"enactment_date,omitempty"`
	OfficialTitle  string        `json:"official_title"`
	URL            string        `json:"url,omitempty"`
	SourceID       string        `json:"source_id,omitempty"`
	Translations   law.Bilingual `json:"translations"`
	Tags           law.LawTags   `json:"tags"`
	Status         string        `json:"status"`
	LastRunID      string        `json:"last_run_id,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

const lawColumns = `id, official_number, slug, law_type, category, enactment_date, official_title,
	url, source_id, translations, tags, status, last_run_id, created_at, updated_at`

func scanLaw(row interface{ Scan(...any) error }) (*Law, error) {
	l := &Law{}
	var lawType string
	var enacted, title, url, sourceID, translations, tags, runID sql.NullString
	if err := row.Scan(&l.ID, &l.OfficialNumber, &l.Slug, &lawType, &l.Category, &enacted,
		&title, &url, &sourceID, &translations, &tags, &l.Status, &runID,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Type = law.Type(lawType)
	l.EnactmentDate = enacted.String
	l.OfficialTitle = title.String
	l.URL = url.String
	l.SourceID = sourceID.String
	l.LastRunID = runID.String
	if err := unmarshalJSON(translations, &l.Translations); err != nil {
		return nil, fmt.Errorf("decoding translations of law %d: %w", l.ID, err)
	}
	if err := unmarshalJSON(tags, &l.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of law %d: %w", l.ID, err)
	}
	return l, nil
}

// UpsertLaw inserts a law or updates the one with the same official
// number. The id of an existing law never changes, so edges pointing at
// it survive re-ingestion. Translations and tags are left alone on update;
// FinalizeLaw sets them once a run completes.
func (s *Store) UpsertLaw(ctx context.Context, l Law) (int64, error) {
	translations, err := marshalJSON(l.Translations)
	if err != nil {
		return 0, err
	}
	tags, err := marshalJSON(l.Tags)
	if err != nil {
		return 0, err
	}
	if l.Type == "" {
		l.Type = law.TypeOther
	}
	if l.Category == "" {
		l.Category = law.DefaultCategory
	}
	if l.Status == "" {
		l.Status = law.LawPending
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO laws (official_number, slug, law_type, category, enactment_date, official_title,
			url, source_id, translations, tags, status, last_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(official_number) DO UPDATE SET
			slug = excluded.slug,
			law_type = excluded.law_type,
			enactment_date = COALESCE(excluded.enactment_date, laws.enactment_date),
			official_title = COALESCE(excluded.official_title, laws.official_title),
			url = COALESCE(excluded.url, laws.url),
			source_id = COALESCE(excluded.source_id, laws.source_id),
			status = excluded.status,
			last_run_id = excluded.last_run_id,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, l.OfficialNumber, l.Slug, string(l.Type), l.Category, nullString(l.EnactmentDate),
		nullString(l.OfficialTitle), nullString(l.URL), nullString(l.SourceID),
		translations, tags, l.Status, nullString(l.LastRunID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting law %s: %w", l.OfficialNumber, err)
	}
	return id, nil
}

// SeedLaw registers a law known from an external registry. An existing
// row keeps its data; only missing dates, titles and URLs are filled in.
func (s *Store) SeedLaw(ctx context.Context, l Law) (int64, error) {
	if l.Type == "" {
		l.Type = law.TypeOther
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO laws (official_number, slug, law_type, category, enactment_date, official_title,
			url, translations, tags, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, '{}', '{}', ?)
		ON CONFLICT(official_number) DO UPDATE SET
			enactment_date = COALESCE(laws.enactment_date, excluded.enactment_date),
			official_title = COALESCE(laws.official_title, excluded.official_title),
			url = COALESCE(laws.url, excluded.url)
		RETURNING id
	`, l.OfficialNumber, l.Slug, string(l.Type), law.DefaultCategory,
		nullString(l.EnactmentDate), nullString(l.OfficialTitle), nullString(l.URL),
		law.LawSeeded).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("seeding law %s: %w", l.OfficialNumber, err)
	}
	return id, nil
}

// GetLaw retrieves a law by id.
func (s *Store) GetLaw(ctx context.Context, id int64) (*Law, error) {
	l, err := scanLaw(s.db.QueryRowContext(ctx, "SELECT "+lawColumns+" FROM laws WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetLawByOfficialNumber looks a law up by its natural key, ignoring case.
func (s *Store) GetLawByOfficialNumber(ctx context.Context, number string) (*Law, error) {
	l, err := scanLaw(s.db.QueryRowContext(ctx,
		"SELECT "+lawColumns+" FROM laws WHERE official_number = ?", number))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetLawBySlug looks a law up by slug.
func (s *Store) GetLawBySlug(ctx context.Context, slug string) (*Law, error) {
	l, err := scanLaw(s.db.QueryRowContext(ctx,
		"SELECT "+lawColumns+" FROM laws WHERE slug = ? ORDER BY id LIMIT 1", slug))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetLawBySource returns the law most recently built from a source.
func (s *Store) GetLawBySource(ctx context.Context, sourceID string) (*Law, error) {
	l, err := scanLaw(s.db.QueryRowContext(ctx,
		"SELECT "+lawColumns+" FROM laws WHERE source_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1", sourceID))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// FindLawsByNumber returns laws whose official number contains number.
// Callers apply their own boundary checks on the result.
func (s *Store) FindLawsByNumber(ctx context.Context, number string) ([]Law, error) {
	if number == "" {
		return nil, nil
	}
	return s.queryLaws(ctx,
		"SELECT "+lawColumns+" FROM laws WHERE instr(official_number, ?) > 0 ORDER BY id", number)
}

// ListLaws returns all laws ordered by official number.
func (s *Store) ListLaws(ctx context.Context) ([]Law, error) {
	return s.queryLaws(ctx, "SELECT "+lawColumns+" FROM laws ORDER BY official_number")
}

// GetLawsByIDs returns the laws with the given ids, in id order.
func (s *Store) GetLawsByIDs(ctx context.Context, ids []int64) ([]Law, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryLaws(ctx,
		"SELECT "+lawColumns+" FROM laws WHERE id IN ("+placeholders(len(ids))+") ORDER BY id", args...)
}

func (s *Store) queryLaws(ctx context.Context, query string, args ...any) ([]Law, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Law
	for rows.Next() {
		l, err := scanLaw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// UpdateLawStatus sets the processing status of a law.
func (s *Store) UpdateLawStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE laws SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", status, id)
	return err
}

// FinalizeLaw writes the law-level results of a run.
func (s *Store) FinalizeLaw(ctx context.Context, id int64, category string, translations law.Bilingual, tags law.LawTags, status string) error {
	tj, err := marshalJSON(translations)
	if err != nil {
		return err
	}
	gj, err := marshalJSON(tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE laws SET category = ?, translations = ?, tags = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, category, tj, gj, status, id)
	if err != nil {
		return fmt.Errorf("finalizing law %d: %w", id, err)
	}
	return nil
}

// DeleteLawContent removes everything a builder run produced for a law:
// articles and their versions, tag links, embeddings, and the law's
// outgoing relationships. The law row and edges pointing at it are kept.
func (s *Store) DeleteLawContent(ctx context.Context, lawID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteLawContent(ctx, tx, lawID)
	})
}

func deleteLawContent(ctx context.Context, tx *sql.Tx, lawID int64) error {
	stmts := []string{
		// vec0 tables do not take part in foreign-key cascades.
		`DELETE FROM vec_article_versions WHERE version_id IN (
			SELECT v.id FROM law_article_versions v
			JOIN law_articles a ON a.id = v.article_id
			WHERE a.law_id = ?)`,
		"DELETE FROM law_relationships WHERE source_law_id = ?",
		"DELETE FROM law_articles WHERE law_id = ?",
		"DELETE FROM law_tags WHERE law_id = ?",
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, lawID); err != nil {
			return fmt.Errorf("deleting content of law %d: %w", lawID, err)
		}
	}
	return nil
}

// DeleteLaw removes a law with all of its content and every edge touching it.
func (s *Store) DeleteLaw(ctx context.Context, lawID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteLawContent(ctx, tx, lawID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM laws WHERE id = ?", lawID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
