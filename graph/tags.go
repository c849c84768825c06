package graph

import (
	"context"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/store"
)

// AggregateTags unions tag sets per category. Names are compared after
// whitespace normalisation, ignoring case and accents; the first spelling
// seen is kept.
func AggregateTags(sets ...law.TagSet) law.TagSet {
	var out law.TagSet
	seen := make(map[law.TagType]map[string]bool, len(law.TagTypes))
	for _, t := range law.TagTypes {
		seen[t] = make(map[string]bool)
	}
	add := func(t law.TagType, dst *[]string, names []string) {
		for _, n := range names {
			n = normalizeSpace(n)
			key := tagKey(n)
			if key == "" || seen[t][key] {
				continue
			}
			seen[t][key] = true
			*dst = append(*dst, n)
		}
	}
	for _, s := range sets {
		add(law.TagPerson, &out.Persons, s.Persons)
		add(law.TagOrganization, &out.Organizations, s.Organizations)
		add(law.TagConcept, &out.Concepts, s.Concepts)
	}
	return out
}

func tagKey(name string) string {
	return strings.ToLower(law.Fold(normalizeSpace(name)))
}

// tagMentions lists every (version, type, name) link to persist.
func tagMentions(versionID int64, tags law.TagSet) []store.TagMention {
	clean := AggregateTags(tags)
	var out []store.TagMention
	for _, t := range law.TagTypes {
		for _, n := range clean.ByType(t) {
			out = append(out, store.TagMention{VersionID: versionID, Type: t, Name: n})
		}
	}
	return out
}

// englishTags copies person and organisation names and translates concepts
// when a translator is available.
func englishTags(ctx context.Context, tr Translator, pt law.TagSet) law.TagSet {
	en := law.TagSet{
		Persons:       append([]string(nil), pt.Persons...),
		Organizations: append([]string(nil), pt.Organizations...),
		Concepts:      append([]string(nil), pt.Concepts...),
	}
	if tr == nil || len(pt.Concepts) == 0 {
		return en
	}
	out, err := tr.Translate(ctx, strings.Join(pt.Concepts, "\n"))
	if err != nil {
		slog.Warn("graph: concept tag translation failed", "error", err)
		return en
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(pt.Concepts) {
		slog.Warn("graph: concept tag translation changed the number of tags",
			"want", len(pt.Concepts), "got", len(lines))
		return en
	}
	for i, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			en.Concepts[i] = l
		}
	}
	return AggregateTags(en)
}
