package law

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the storage format for enactment and validity dates.
const DateLayout = "2006-01-02"

// Metadata is what can be read off the head of a legal text without a model.
type Metadata struct {
	Type          string    // law type as written, e.g. "Decreto-Lei"
	Number        string    // e.g. "30/2017"
	EnactmentDate time.Time // zero when no date was found
	Title         string    // first non-empty line
}

var (
	typeNumberRe *regexp.Regexp

	// numberRe matches official numbers such as "30/2017", "7-2009" or "12/2020-A".
	numberRe = regexp.MustCompile(`\d+[-/]\d+(?:-[A-Z])?`)

	ptDateRe = regexp.MustCompile(`(?i)\bde\s+(\d{1,2})\s+de\s+(janeiro|fevereiro|março|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s+de\s+(\d{4})`)

	crpRe = regexp.MustCompile(`\bCRP\b`)

	articleKeyRe = regexp.MustCompile(`(\d+)\s*\.?\s*o?\s*(?:-\s*([A-Za-z])\b)?`)
)

var ptMonths = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "março": time.March,
	"marco": time.March, "abril": time.April, "maio": time.May, "junho": time.June,
	"julho": time.July, "agosto": time.August, "setembro": time.September,
	"outubro": time.October, "novembro": time.November, "dezembro": time.December,
}

func init() {
	names := make([]string, 0, len(typeNames))
	for name := range typeNames {
		names = append(names, regexp.QuoteMeta(name))
	}
	// Longest first so "Lei Orgânica" wins over "Lei".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	typeNumberRe = regexp.MustCompile(`(?i)(` + strings.Join(names, "|") + `)\s+n\.?\s*[º°o]?\.?\s*(\d+[-/]\d+(?:-[A-Z])?)`)
}

// ParseMetadata extracts type, number, enactment date and title from the
// opening text of a law.
func ParseMetadata(text string) Metadata {
	var md Metadata
	if m := typeNumberRe.FindStringSubmatch(text); m != nil {
		md.Type = strings.TrimSpace(m[1])
		md.Number = strings.TrimSpace(m[2])
	}
	if t, ok := parsePTDate(text); ok {
		md.EnactmentDate = t
	}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			md.Title = line
			break
		}
	}
	return md
}

func parsePTDate(text string) (time.Time, bool) {
	m := ptDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	month, ok := ptMonths[strings.ToLower(m[2])]
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp and returns the
// calendar date in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t, true
		}
	}
	if t, ok := parsePTDate(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// FormatDate renders a date for storage; the zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ExtractNumber returns the first official number found in s, or "".
func ExtractNumber(s string) string {
	return numberRe.FindString(s)
}

// CanonicalNumber renders the official number of a typed law, for example
// "Decreto-Lei n.º 30/2017". rawType is used when the type is unknown.
func CanonicalNumber(t Type, rawType, number string) string {
	number = strings.TrimSpace(number)
	name := PTName(t)
	if name == "" {
		name = strings.TrimSpace(rawType)
	}
	if name == "" {
		return number
	}
	return fmt.Sprintf("%s n.º %s", name, number)
}

// IsConstitution reports whether a title names the Portuguese constitution.
func IsConstitution(title string) bool {
	folded := strings.ToLower(Fold(title))
	return strings.Contains(folded, "constituicao da republica portuguesa") || crpRe.MatchString(title)
}

// OfficialNumber picks the natural key for a law. Priority: the
// constitution ("CRP"), the typed number found in the text, a number
// found in the title, and finally the first eight characters of fallbackID.
func OfficialNumber(title string, md Metadata, fallbackID string) string {
	if IsConstitution(title) || IsConstitution(md.Title) {
		return "CRP"
	}
	if md.Number != "" {
		return CanonicalNumber(ClassifyType(md.Type), md.Type, md.Number)
	}
	if n := ExtractNumber(title); n != "" {
		rawType := md.Type
		if rawType == "" {
			rawType = "Lei"
		}
		return CanonicalNumber(ClassifyType(rawType), rawType, n)
	}
	if len(fallbackID) > 8 {
		return fallbackID[:8]
	}
	return fallbackID
}

// ArticleKey normalises an article label for lookups: "Artigo 5.º-A"
// becomes "5-A", "Artigo único" becomes "UNICO". Labels without a number
// are upper-cased as they are.
func ArticleKey(label string) string {
	folded := Fold(strings.TrimSpace(label))
	if strings.Contains(strings.ToLower(folded), "unico") {
		return "UNICO"
	}
	m := articleKeyRe.FindStringSubmatch(folded)
	if m == nil {
		return strings.ToUpper(strings.Join(strings.Fields(folded), " "))
	}
	n, _ := strconv.Atoi(m[1])
	key := strconv.Itoa(n)
	if m[2] != "" {
		key += "-" + strings.ToUpper(m[2])
	}
	return key
}
