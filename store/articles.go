package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brunobiangulo/legalgraph/law"
)

// Article is the identity of an article within a law.
type Article struct {
	ID            int64  `json:"id"`
	LawID         int64  `json:"law_id"`
	ArticleNumber string `json:"article_number"`
	NumberKey     string `json:"number_key"`
	ArticleOrder  int    `json:"article_order"`
}

// Version is one text of an article with its validity window. ValidFrom
// and ValidTo are ISO dates or "".
type Version struct {
	ID              int64         `json:"id"`
	ArticleID       int64         `json:"article_id"`
	ArticleNumber   string        `json:"article_number,omitempty"`
	OfficialText    string        `json:"official_text"`
	Status          law.Status    `json:"status"`
	ValidFrom       string        `json:"valid_from,omitempty"`
	ValidTo         string        `json:"valid_to,omitempty"`
	Category        string        `json:"category,omitempty"`
	Translations    law.Bilingual `json:"translations"`
	Tags            law.TagSet    `json:"tags"`
	CrossReferences string        `json:"cross_references,omitempty"`
	RunID           string        `json:"run_id,omitempty"`
}

// NewArticle is an article plus its first version, written together.
type NewArticle struct {
	Article Article
	Version Version
}

// ArticleRef is what InsertArticles returns per written article.
type ArticleRef struct {
	ArticleNumber string `json:"article_number"`
	ArticleID     int64  `json:"article_id"`
	VersionID     int64  `json:"version_id"`
}

// InsertArticles writes a batch of articles and their versions in one
// transaction, so a failed batch leaves earlier batches intact.
func (s *Store) InsertArticles(ctx context.Context, lawID int64, items []NewArticle) ([]ArticleRef, error) {
	refs := make([]ArticleRef, 0, len(items))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		artStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO law_articles (law_id, article_number, number_key, article_order)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer artStmt.Close()

		verStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO law_article_versions (article_id, official_text, status, valid_from, valid_to,
				category, translations, tags, cross_references, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer verStmt.Close()

		for _, it := range items {
			a, v := it.Article, it.Version
			if a.NumberKey == "" {
				a.NumberKey = law.ArticleKey(a.ArticleNumber)
			}
			if v.Status == "" {
				v.Status = law.StatusActive
			}
			translations, err := marshalJSON(v.Translations)
			if err != nil {
				return err
			}
			tags, err := marshalJSON(v.Tags)
			if err != nil {
				return err
			}

			var ref ArticleRef
			ref.ArticleNumber = a.ArticleNumber
			if err := artStmt.QueryRowContext(ctx, lawID, a.ArticleNumber, a.NumberKey, a.ArticleOrder).
				Scan(&ref.ArticleID); err != nil {
				return fmt.Errorf("inserting article %q: %w", a.ArticleNumber, err)
			}
			if err := verStmt.QueryRowContext(ctx, ref.ArticleID, v.OfficialText, string(v.Status),
				nullString(v.ValidFrom), nullString(v.ValidTo), nullString(v.Category),
				translations, tags, nullString(v.CrossReferences), nullString(v.RunID)).
				Scan(&ref.VersionID); err != nil {
				return fmt.Errorf("inserting version of article %q: %w", a.ArticleNumber, err)
			}
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// GetArticles returns the articles of a law in document order.
func (s *Store) GetArticles(ctx context.Context, lawID int64) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, law_id, article_number, number_key, article_order
		FROM law_articles WHERE law_id = ? ORDER BY article_order, id
	`, lawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.LawID, &a.ArticleNumber, &a.NumberKey, &a.ArticleOrder); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindArticle returns the first article of a law with the given number key.
func (s *Store) FindArticle(ctx context.Context, lawID int64, numberKey string) (*Article, error) {
	a := &Article{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, law_id, article_number, number_key, article_order
		FROM law_articles WHERE law_id = ? AND number_key = ?
		ORDER BY article_order, id LIMIT 1
	`, lawID, numberKey).Scan(&a.ID, &a.LawID, &a.ArticleNumber, &a.NumberKey, &a.ArticleOrder)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetVersions returns every version of every article of a law.
func (s *Store) GetVersions(ctx context.Context, lawID int64) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.article_id, a.article_number, v.official_text, v.status, v.valid_from, v.valid_to,
			v.category, v.translations, v.tags, v.cross_references, v.run_id
		FROM law_article_versions v
		JOIN law_articles a ON a.id = v.article_id
		WHERE a.law_id = ?
		ORDER BY a.article_order, a.id, v.id
	`, lawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		var status string
		var from, to, category, translations, tags, refs, runID sql.NullString
		if err := rows.Scan(&v.ID, &v.ArticleID, &v.ArticleNumber, &v.OfficialText, &status,
			&from, &to, &category, &translations, &tags, &refs, &runID); err != nil {
			return nil, err
		}
		v.Status = law.Status(status)
		v.ValidFrom = from.String
		v.ValidTo = to.String
		v.Category = category.String
		v.CrossReferences = refs.String
		v.RunID = runID.String
		if err := unmarshalJSON(translations, &v.Translations); err != nil {
			return nil, fmt.Errorf("decoding translations of version %d: %w", v.ID, err)
		}
		if err := unmarshalJSON(tags, &v.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of version %d: %w", v.ID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Transition moves versions of a law out of ACTIVE.
type Transition struct {
	LawID     int64
	ArticleID int64 // 0 means every article of the law
	Status    law.Status
	ValidTo   string // ISO date; clamped to each version's valid_from
}

// TransitionVersions applies t to the law's ACTIVE versions and returns how
// many rows changed. Versions already out of ACTIVE are untouched, so
// applying the same transition twice changes nothing the second time.
func (s *Store) TransitionVersions(ctx context.Context, t Transition) (int64, error) {
	query := `
		UPDATE law_article_versions
		SET status = ?,
			valid_to = CASE WHEN valid_from IS NOT NULL AND ? < valid_from THEN valid_from ELSE ? END
		WHERE status = 'ACTIVE'
		  AND article_id IN (SELECT id FROM law_articles WHERE law_id = ?`
	args := []any{string(t.Status), t.ValidTo, t.ValidTo, t.LawID}
	if t.ArticleID != 0 {
		query += " AND id = ?"
		args = append(args, t.ArticleID)
	}
	query += ")"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("transitioning versions of law %d: %w", t.LawID, err)
	}
	return res.RowsAffected()
}
