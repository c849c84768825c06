package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brunobiangulo/legalgraph/law"
)

// Relationship represents a row in the law_relationships table.
type Relationship struct {
	ID               int64            `json:"id"`
	SourceLawID      int64            `json:"source_law_id"`
	TargetLawID      int64            `json:"target_law_id"`
	Type             law.RelationType `json:"relationship_type"`
	TargetArticleKey string           `json:"target_article_key,omitempty"`
	FullSupersession bool             `json:"full_supersession"`
	SourceArticleID  *int64           `json:"source_article_id,omitempty"`
	Description      string           `json:"description,omitempty"`
}

// InsertRelationship stores an edge unless an identical one (same source,
// target, type and article key) already exists. It reports whether a row
// was written. A self edge is an error.
func (s *Store) InsertRelationship(ctx context.Context, r Relationship) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO law_relationships (source_law_id, target_law_id, relationship_type,
			target_article_key, full_supersession, source_article_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_law_id, target_law_id, relationship_type, target_article_key) DO NOTHING
	`, r.SourceLawID, r.TargetLawID, string(r.Type), r.TargetArticleKey,
		r.FullSupersession, r.SourceArticleID, nullString(r.Description))
	if err != nil {
		return false, fmt.Errorf("inserting relationship %d->%d %s: %w", r.SourceLawID, r.TargetLawID, r.Type, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const relationshipColumns = `id, source_law_id, target_law_id, relationship_type, target_article_key,
	full_supersession, source_article_id, description`

func (s *Store) queryRelationships(ctx context.Context, query string, args ...any) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		var r Relationship
		var relType string
		var srcArticle sql.NullInt64
		var desc sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceLawID, &r.TargetLawID, &relType, &r.TargetArticleKey,
			&r.FullSupersession, &srcArticle, &desc); err != nil {
			return nil, err
		}
		r.Type = law.RelationType(relType)
		r.Description = desc.String
		if srcArticle.Valid {
			id := srcArticle.Int64
			r.SourceArticleID = &id
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutgoingRelationships returns the edges whose source is lawID.
func (s *Store) OutgoingRelationships(ctx context.Context, lawID int64) ([]Relationship, error) {
	return s.queryRelationships(ctx,
		"SELECT "+relationshipColumns+" FROM law_relationships WHERE source_law_id = ? ORDER BY id", lawID)
}

// IncomingRelationships returns the edges whose target is lawID.
func (s *Store) IncomingRelationships(ctx context.Context, lawID int64) ([]Relationship, error) {
	return s.queryRelationships(ctx,
		"SELECT "+relationshipColumns+" FROM law_relationships WHERE target_law_id = ? ORDER BY id", lawID)
}

// RelationshipsTouching returns every edge that has one of ids as source
// or target.
func (s *Store) RelationshipsTouching(ctx context.Context, ids []int64) ([]Relationship, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	ph := placeholders(len(ids))
	return s.queryRelationships(ctx,
		"SELECT "+relationshipColumns+" FROM law_relationships WHERE source_law_id IN ("+ph+
			") OR target_law_id IN ("+ph+") ORDER BY id", args...)
}

// ArticleReference links two articles.
type ArticleReference struct {
	SourceArticleID int64            `json:"source_article_id"`
	TargetArticleID int64            `json:"target_article_id"`
	Type            law.RelationType `json:"relationship_type"`
}

// InsertArticleReference stores an article-level reference; duplicates
// are ignored.
func (s *Store) InsertArticleReference(ctx context.Context, r ArticleReference) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO law_article_references (source_article_id, target_article_id, relationship_type)
		VALUES (?, ?, ?)
	`, r.SourceArticleID, r.TargetArticleID, string(r.Type))
	if err != nil {
		return false, fmt.Errorf("inserting article reference %d->%d: %w", r.SourceArticleID, r.TargetArticleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ArticleReferencesFrom returns the article references made by a law's articles.
func (s *Store) ArticleReferencesFrom(ctx context.Context, lawID int64) ([]ArticleReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.source_article_id, r.target_article_id, r.relationship_type
		FROM law_article_references r
		JOIN law_articles a ON a.id = r.source_article_id
		WHERE a.law_id = ?
		ORDER BY r.source_article_id, r.target_article_id
	`, lawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArticleReference
	for rows.Next() {
		var r ArticleReference
		var relType string
		if err := rows.Scan(&r.SourceArticleID, &r.TargetArticleID, &relType); err != nil {
			return nil, err
		}
		r.Type = law.RelationType(relType)
		out = append(out, r)
	}
	return out, rows.Err()
}
