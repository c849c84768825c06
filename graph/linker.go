package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/store"
)

// LinkStats counts what the linker did.
type LinkStats struct {
	Relationships     int `json:"relationships"`
	ArticleReferences int `json:"article_references"`
	Transitions       int `json:"transitions"`
	Unresolved        int `json:"unresolved"`
	Anomalies         int `json:"anomalies"`
}

func (s *LinkStats) add(o LinkStats) {
	s.Relationships += o.Relationships
	s.ArticleReferences += o.ArticleReferences
	s.Transitions += o.Transitions
	s.Unresolved += o.Unresolved
	s.Anomalies += o.Anomalies
}

// Linker turns cross references into relationship edges and applies their
// effect on target article versions.
type Linker struct {
	store *store.Store
}

// NewLinker creates a linker over s.
func NewLinker(s *store.Store) *Linker {
	return &Linker{store: s}
}

// LinkSource is the article (nil for the preamble) a reference came from.
type LinkSource struct {
	ArticleID *int64
	Article   string
}

// Link resolves and records the cross references of one article. A
// temporal-consistency violation is recorded as an anomaly and the edge
// is dropped; an unresolved reference records nothing. Only storage
// errors are returned.
func (l *Linker) Link(ctx context.Context, rc RunContext, src LinkSource, refs []CrossReference) (LinkStats, []*StageError, error) {
	var (
		stats     LinkStats
		anomalies []*StageError
	)
	for _, ref := range refs {
		rel := law.ClassifyRelation(ref.Relationship)
		if rel == law.RelInternal {
			n, err := l.linkInternal(ctx, rc, src, ref)
			if err != nil {
				return stats, anomalies, err
			}
			stats.ArticleReferences += n
			continue
		}

		target, err := l.Resolve(ctx, rc, ref)
		if err != nil {
			return stats, anomalies, err
		}
		if target == nil {
			stats.Unresolved++
			slog.Debug("graph: reference unresolved", "article", src.Article, "type", ref.Type, "number", ref.Number)
			continue
		}

		if rel.Temporal() {
			if err := checkTemporal(rc.EnactmentDate, target); err != nil {
				stats.Anomalies++
				se := newStageError(KindAnomaly, StageLink, -1, articleList(src.Article), err)
				anomalies = append(anomalies, se)
				slog.Warn("graph: relationship rejected", append(rc.LogAttrs(),
					"article", src.Article, "type", rel, "target", target.OfficialNumber, "error", err)...)
				continue
			}
		}

		edge := store.Relationship{
			SourceLawID:      rc.LawID,
			TargetLawID:      target.ID,
			Type:             rel,
			FullSupersession: ref.FullSupersession,
			SourceArticleID:  src.ArticleID,
			Description:      ref.Description,
		}
		if ref.Article != "" {
			edge.TargetArticleKey = law.ArticleKey(ref.Article)
		}
		inserted, err := l.store.InsertRelationship(ctx, edge)
		if err != nil {
			return stats, anomalies, err
		}
		if inserted {
			stats.Relationships++
		}

		n, err := l.apply(ctx, rc.EnactmentDate, edge)
		if err != nil {
			return stats, anomalies, err
		}
		stats.ArticleReferences += n.ArticleReferences
		stats.Transitions += n.Transitions
	}
	return stats, anomalies, nil
}

// apply records the article-level reference of an edge and, for edges that
// end their target, transitions the target's active versions.
func (l *Linker) apply(ctx context.Context, sourceDate time.Time, edge store.Relationship) (LinkStats, error) {
	var stats LinkStats

	var targetArticle *store.Article
	if edge.TargetArticleKey != "" {
		a, err := l.store.FindArticle(ctx, edge.TargetLawID, edge.TargetArticleKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return stats, err
		default:
			targetArticle = a
		}
	}

	if targetArticle != nil && edge.SourceArticleID != nil {
		ok, err := l.store.InsertArticleReference(ctx, store.ArticleReference{
			SourceArticleID: *edge.SourceArticleID,
			TargetArticleID: targetArticle.ID,
			Type:            edge.Type,
		})
		if err != nil {
			return stats, err
		}
		if ok {
			stats.ArticleReferences++
		}
	}

	status, ends := law.TransitionStatus(edge.Type, edge.FullSupersession)
	if !ends || sourceDate.IsZero() {
		return stats, nil
	}
	// A named article that is not stored yet has nothing to transition.
	if edge.TargetArticleKey != "" && targetArticle == nil {
		return stats, nil
	}

	t := store.Transition{
		LawID:   edge.TargetLawID,
		Status:  status,
		ValidTo: law.FormatDate(sourceDate.AddDate(0, 0, -1)),
	}
	if targetArticle != nil {
		t.ArticleID = targetArticle.ID
	}
	n, err := l.store.TransitionVersions(ctx, t)
	if err != nil {
		return stats, err
	}
	stats.Transitions = int(n)
	if n > 0 {
		slog.Info("graph: versions transitioned", "target_law", edge.TargetLawID,
			"status", status, "valid_to", t.ValidTo, "versions", n)
	}
	return stats, nil
}

// linkInternal records a reference between two articles of the law being
// built.
func (l *Linker) linkInternal(ctx context.Context, rc RunContext, src LinkSource, ref CrossReference) (int, error) {
	if src.ArticleID == nil || ref.Article == "" {
		return 0, nil
	}
	target, err := l.store.FindArticle(ctx, rc.LawID, law.ArticleKey(ref.Article))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if target.ID == *src.ArticleID {
		return 0, nil
	}
	ok, err := l.store.InsertArticleReference(ctx, store.ArticleReference{
		SourceArticleID: *src.ArticleID,
		TargetArticleID: target.ID,
		Type:            law.RelInternal,
	})
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}

// ReapplyInbound re-applies the stored edges that point at the law of rc,
// after its content was recreated: article references are rebuilt and
// temporal effects moved onto the fresh versions.
func (l *Linker) ReapplyInbound(ctx context.Context, rc RunContext) (LinkStats, error) {
	var stats LinkStats
	edges, err := l.store.IncomingRelationships(ctx, rc.LawID)
	if err != nil {
		return stats, err
	}
	if len(edges) == 0 {
		return stats, nil
	}

	target, err := l.store.GetLaw(ctx, rc.LawID)
	if err != nil {
		return stats, err
	}

	dates := make(map[int64]time.Time)
	for _, e := range edges {
		d, seen := dates[e.SourceLawID]
		if !seen {
			src, err := l.store.GetLaw(ctx, e.SourceLawID)
			if err != nil {
				return stats, err
			}
			d, _ = law.ParseDate(src.EnactmentDate)
			dates[e.SourceLawID] = d
		}
		if e.Type.Temporal() {
			if err := checkTemporal(d, target); err != nil {
				stats.Anomalies++
				slog.Warn("graph: stored inbound edge no longer consistent", "source_law", e.SourceLawID,
					"target_law", rc.LawID, "type", e.Type, "error", err)
				continue
			}
		}
		n, err := l.apply(ctx, d, e)
		if err != nil {
			return stats, err
		}
		stats.add(n)
	}
	if stats.Transitions > 0 || stats.ArticleReferences > 0 {
		slog.Info("graph: inbound edges re-applied", append(rc.LogAttrs(),
			"edges", len(edges), "transitions", stats.Transitions, "article_references", stats.ArticleReferences)...)
	}
	return stats, nil
}

// checkTemporal enforces that an amending or revoking law is not older
// than its target. Unknown dates cannot prove the order.
func checkTemporal(source time.Time, target *store.Law) error {
	td, ok := law.ParseDate(target.EnactmentDate)
	switch {
	case source.IsZero():
		return fmt.Errorf("%w: source enactment date unknown", ErrRelationshipAnomaly)
	case !ok:
		return fmt.Errorf("%w: enactment date of %s unknown", ErrRelationshipAnomaly, target.OfficialNumber)
	case source.Before(td):
		return fmt.Errorf("%w: source enacted %s before target %s (%s)", ErrRelationshipAnomaly,
			law.FormatDate(source), target.OfficialNumber, target.EnactmentDate)
	}
	return nil
}

// Resolve finds the stored law a reference points to, or nil. Order: URL
// slug, exact official number, then number-only candidates with a type
// preference. Ambiguous matches and the source law itself resolve to nil.
func (l *Linker) Resolve(ctx context.Context, rc RunContext, ref CrossReference) (*store.Law, error) {
	// accept reports whether the lookup settled the reference. A match on
	// the source law settles it with no target.
	accept := func(c *store.Law, err error) (*store.Law, bool, error) {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, true, err
		}
		if c.ID == rc.LawID {
			return nil, true, nil
		}
		return c, true, nil
	}

	if slug := urlSlug(ref.URL); slug != "" {
		if c, done, err := accept(l.store.GetLawBySlug(ctx, slug)); done {
			return c, err
		}
	}

	rawType, number := referenceNumber(ref)
	if number == "" {
		return nil, nil
	}
	typ := law.ClassifyType(rawType)

	if rawType != "" {
		canonical := law.CanonicalNumber(typ, rawType, number)
		if c, done, err := accept(l.store.GetLawByOfficialNumber(ctx, canonical)); done {
			return c, err
		}
	}
	if c, done, err := accept(l.store.GetLawByOfficialNumber(ctx, number)); done {
		return c, err
	}

	found, err := l.store.FindLawsByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	var candidates []store.Law
	self := false
	for _, c := range found {
		switch {
		case !containsNumber(c.OfficialNumber, number):
		case c.ID == rc.LawID:
			self = true
		default:
			candidates = append(candidates, c)
		}
	}
	if typ == law.TypeOther && self {
		// An untyped number shared with the source law cannot be told apart.
		return nil, nil
	}
	if typ != law.TypeOther {
		var typed []store.Law
		for _, c := range candidates {
			if c.Type == typ {
				typed = append(typed, c)
			}
		}
		candidates = typed
	}
	if len(candidates) != 1 {
		if len(candidates) > 1 {
			slog.Debug("graph: ambiguous reference", "number", number, "candidates", len(candidates))
		}
		return nil, nil
	}
	return &candidates[0], nil
}

// referenceNumber extracts the law type and official number from a
// reference, reading them off the number field when the model put the
// whole citation there.
func referenceNumber(ref CrossReference) (string, string) {
	rawType := strings.TrimSpace(ref.Type)
	number := law.ExtractNumber(ref.Number)
	if rawType == "" || number == "" {
		md := law.ParseMetadata(ref.Number)
		if rawType == "" {
			rawType = md.Type
		}
		if number == "" {
			number = md.Number
		}
	}
	if number == "" {
		number = strings.TrimSpace(ref.Number)
	}
	return rawType, number
}

// containsNumber reports whether number occurs in s without being part of
// a longer number ("30/2017" is not in "130/2017").
func containsNumber(s, number string) bool {
	for off := 0; ; {
		i := strings.Index(s[off:], number)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(number)
		if (start == 0 || !isDigit(s[start-1])) && (end == len(s) || !isDigit(s[end])) {
			return true
		}
		off = start + 1
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func urlSlug(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return law.Slug(seg)
}

func articleList(a string) []string {
	if a == "" {
		return nil
	}
	return []string{a}
}
