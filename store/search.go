package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ArticleHit is an article version returned by a search.
type ArticleHit struct {
	VersionID      int64   `json:"version_id"`
	ArticleID      int64   `json:"article_id"`
	LawID          int64   `json:"law_id"`
	OfficialNumber string  `json:"official_number"`
	ArticleNumber  string  `json:"article_number"`
	Status         string  `json:"status"`
	Summary        string  `json:"summary"`
	Score          float64 `json:"score"`
}

// InsertEmbedding stores the summary embedding of a version.
func (s *Store) InsertEmbedding(ctx context.Context, versionID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_article_versions (version_id, embedding) VALUES (?, ?)",
		versionID, serializeFloat32(embedding))
	return err
}

// hitJoin joins a version id column to its article and law.
func hitJoin(versionCol string) string {
	return fmt.Sprintf(`
		JOIN law_article_versions v ON v.id = %s
		JOIN law_articles a ON a.id = v.article_id
		JOIN laws l ON l.id = a.law_id`, versionCol)
}

// SimilarArticles performs a KNN search over version embeddings.
func (s *Store) SimilarArticles(ctx context.Context, queryEmbedding []float32, k int) ([]ArticleHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.version_id, e.distance, a.id, l.id, l.official_number, a.article_number, v.status,
			COALESCE(json_extract(v.translations, '$.pt.summary'), '')
		FROM vec_article_versions e`+hitJoin("e.version_id")+`
		WHERE e.embedding MATCH ? AND k = ?
		ORDER BY e.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	return scanHits(rows, func(d float64) float64 { return 1.0 - d })
}

// SearchArticles performs a full-text search over article text and
// Portuguese summaries using FTS5 BM25 ranking.
func (s *Store) SearchArticles(ctx context.Context, query string, limit int) ([]ArticleHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid, f.rank, a.id, l.id, l.official_number, a.article_number, v.status,
			COALESCE(json_extract(v.translations, '$.pt.summary'), '')
		FROM article_versions_fts f`+hitJoin("f.rowid")+`
		WHERE article_versions_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	// FTS5 rank is negative (lower = better).
	return scanHits(rows, func(r float64) float64 { return -r })
}

func scanHits(rows *sql.Rows, score func(float64) float64) ([]ArticleHit, error) {
	defer rows.Close()
	var out []ArticleHit
	for rows.Next() {
		var h ArticleHit
		var raw float64
		if err := rows.Scan(&h.VersionID, &raw, &h.ArticleID, &h.LawID, &h.OfficialNumber,
			&h.ArticleNumber, &h.Status, &h.Summary); err != nil {
			return nil, err
		}
		h.Score = score(raw)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuery quotes each word so user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}
