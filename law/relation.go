package law

import "strings"

// RelationType is the type of a directed law-to-law edge.
type RelationType string

const (
	RelReferences RelationType = "REFERENCES"
	RelAmends     RelationType = "AMENDS"
	RelRevokes    RelationType = "REVOKES"
	RelModifies   RelationType = "MODIFIES"
	RelRegulates  RelationType = "REGULATES"

	// RelInternal marks a reference to another article of the same law.
	// It never produces a law-to-law edge.
	RelInternal RelationType = "REFERENCES_INTERNAL"
)

// Temporal reports whether the relationship changes the legal effect of
// its target, which constrains the enactment order of the two laws.
func (r RelationType) Temporal() bool {
	return r == RelAmends || r == RelRevokes
}

// relationNames maps the vocabulary the model (and older extractions) use
// onto RelationType. Lookup is case-insensitive.
var relationNames = map[string]RelationType{
	"references":          RelReferences,
	"reference":           RelReferences,
	"refers":              RelReferences,
	"cites":               RelReferences,
	"cita":                RelReferences,
	"remete":              RelReferences,
	"amends":              RelAmends,
	"amend":               RelAmends,
	"alters":              RelAmends,
	"altera":              RelAmends,
	"republica":           RelAmends,
	"revokes":             RelRevokes,
	"revoke":              RelRevokes,
	"repeals":             RelRevokes,
	"revoga":              RelRevokes,
	"modifies":            RelModifies,
	"modifica":            RelModifies,
	"regulates":           RelRegulates,
	"regulamenta":         RelRegulates,
	"references_internal": RelInternal,
	"internal":            RelInternal,
}

// ClassifyRelation maps a free-text relationship to a RelationType.
// Unknown or empty input is treated as a plain reference.
func ClassifyRelation(s string) RelationType {
	key := strings.ToLower(strings.TrimSpace(Fold(s)))
	key = strings.ReplaceAll(key, " ", "_")
	if r, ok := relationNames[key]; ok {
		return r
	}
	upper := RelationType(strings.ToUpper(key))
	switch upper {
	case RelReferences, RelAmends, RelRevokes, RelModifies, RelRegulates, RelInternal:
		return upper
	}
	return RelReferences
}

// TransitionStatus returns the status a target version moves to when an
// edge of type r takes effect, and false when r does not end versions.
// AMENDS only ends the target when it replaces it entirely.
func TransitionStatus(r RelationType, fullSupersession bool) (Status, bool) {
	switch {
	case r == RelRevokes:
		return StatusRevoked, true
	case r == RelAmends && fullSupersession:
		return StatusSuperseded, true
	}
	return "", false
}
