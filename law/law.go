// Package law holds the legal-domain vocabulary shared by the store, the
// graph builder and the engine: law types, article lifecycle statuses,
// relationship types, categories, tags and bilingual translations.
package law

import (
	"strings"
)

// Status is the lifecycle state of an article version.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusSuperseded Status = "SUPERSEDED"
	StatusRevoked    Status = "REVOKED"
	StatusDraft      Status = "DRAFT"
)

// Statuses lists every valid version status.
var Statuses = []Status{StatusActive, StatusSuperseded, StatusRevoked, StatusDraft}

// Law processing states recorded on the laws table.
const (
	LawPending    = "PENDING"
	LawProcessing = "PROCESSING"
	LawProcessed  = "PROCESSED"
	LawPartial    = "PARTIAL"
	LawFailed     = "FAILED"
	LawSeeded     = "SEEDED"
)

// Categories is the master category list offered to the model.
var Categories = []string{
	"CONSTITUTIONAL", "FISCAL", "LABOR", "HEALTH", "ENVIRONMENTAL",
	"JUDICIAL", "ADMINISTRATIVE", "CIVIL", "CRIMINAL", "SOCIAL_SECURITY",
}

// DefaultCategory is used until the reduce phase suggests a better one.
const DefaultCategory = "ADMINISTRATIVE"

// NormalizeCategory maps a model suggestion onto the master list.
// Anything unrecognised becomes DefaultCategory.
func NormalizeCategory(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	for _, c := range Categories {
		if c == key {
			return c
		}
	}
	return DefaultCategory
}

// PendingMarker stands in for a translation that could not be produced.
const PendingMarker = "[translation pending]"

// Language codes used in translation objects.
const (
	LangPT = "pt"
	LangEN = "en"
)

// Translation is a title and summary in one language.
type Translation struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// IsZero reports whether both fields are blank.
func (t Translation) IsZero() bool {
	return strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Summary) == ""
}

// Pending returns a translation carrying only the pending marker.
func Pending() Translation {
	return Translation{Title: PendingMarker, Summary: PendingMarker}
}

// Bilingual holds the Portuguese and English renderings of a title and summary.
type Bilingual struct {
	PT Translation `json:"pt"`
	EN Translation `json:"en"`
}

// TagType is the category of a tag.
type TagType string

const (
	TagPerson       TagType = "person"
	TagOrganization TagType = "organization"
	TagConcept      TagType = "concept"
)

// TagSet groups tag names by category. Names keep their original case.
type TagSet struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Concepts      []string `json:"concepts"`
}

// ByType returns the names for one category.
func (s TagSet) ByType(t TagType) []string {
	switch t {
	case TagPerson:
		return s.Persons
	case TagOrganization:
		return s.Organizations
	case TagConcept:
		return s.Concepts
	}
	return nil
}

// Len is the total number of names across categories.
func (s TagSet) Len() int {
	return len(s.Persons) + len(s.Organizations) + len(s.Concepts)
}

// TagTypes lists the categories in a stable order.
var TagTypes = []TagType{TagPerson, TagOrganization, TagConcept}

// LawTags is the aggregated, bilingual tag object stored on a law.
type LawTags struct {
	PT TagSet `json:"pt"`
	EN TagSet `json:"en"`
}
