package graph

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/brunobiangulo/legalgraph/law"
)

// Defaults for the summary gate. Both are tunable through configuration.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultMinSummaryChars     = 50
)

const (
	fallbackTitleChars   = 60
	fallbackSummaryChars = 200
)

// Validator rejects summaries that echo the source text and replaces them
// with an extractive fallback.
type Validator struct {
	Threshold  float64
	MinChars   int
	Translator Translator // optional
}

// NewValidator creates a validator. Zero values select the defaults.
func NewValidator(threshold float64, minChars int, tr Translator) *Validator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if minChars <= 0 {
		minChars = DefaultMinSummaryChars
	}
	return &Validator{Threshold: threshold, MinChars: minChars, Translator: tr}
}

// Downgrade records one replaced translation.
type Downgrade struct {
	Article  string `json:"article"`
	Language string `json:"language"`
	Reason   string `json:"reason"`
}

// Apply validates both languages of an analysis against its official
// text and rewrites invalid ones in place. It never fails.
func (v *Validator) Apply(ctx context.Context, article, officialText string, tr *law.Bilingual) []Downgrade {
	var out []Downgrade

	if reason := v.Check(officialText, tr.PT); reason != "" {
		tr.PT = Fallback(officialText)
		out = append(out, Downgrade{Article: article, Language: law.LangPT, Reason: reason})
	}

	if reason := v.Check(officialText, tr.EN); reason != "" {
		tr.EN = v.translate(ctx, tr.PT)
		out = append(out, Downgrade{Article: article, Language: law.LangEN, Reason: reason})
	}

	for _, d := range out {
		slog.Warn("graph: summary downgraded", "article", d.Article, "lang", d.Language, "reason", d.Reason)
	}
	return out
}

// translate produces EN from the final PT text, or the pending marker.
func (v *Validator) translate(ctx context.Context, pt law.Translation) law.Translation {
	if v.Translator == nil {
		return law.Pending()
	}
	title, err := v.Translator.Translate(ctx, pt.Title)
	if err != nil {
		slog.Warn("graph: translation failed", "error", err)
		return law.Pending()
	}
	summary, err := v.Translator.Translate(ctx, pt.Summary)
	if err != nil {
		slog.Warn("graph: translation failed", "error", err)
		return law.Pending()
	}
	return law.Translation{Title: title, Summary: summary}
}

// Check returns why t is not an acceptable summary of officialText, or ""
// when it is.
func (v *Validator) Check(officialText string, t law.Translation) string {
	if isPlaceholder(t.Title) {
		return "placeholder title"
	}
	if isPlaceholder(t.Summary) {
		return "placeholder summary"
	}
	official := normalizeSpace(officialText)
	summary := normalizeSpace(t.Summary)
	if strings.EqualFold(official, summary) {
		return "summary equals official text"
	}
	if len([]rune(summary)) > v.MinChars && Similarity(official, summary) > v.Threshold {
		return "summary copies official text"
	}
	return ""
}

// Similarity is |words(a) ∩ words(b)| / max(|words(a)|, |words(b)|) over
// lower-cased word sets.
func Similarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	denom := max(len(wa), len(wb))
	if denom == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if wb[w] {
			common++
		}
	}
	return float64(common) / float64(denom)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if f != "" {
			set[f] = true
		}
	}
	return set
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var placeholders = map[string]bool{
	"": true, "n/a": true, "na": true, "-": true, "...": true, "tbd": true, "todo": true,
	"none": true, "null": true, "sem resumo": true, "sem título": true, "sem titulo": true,
	"no summary": true, "[translation pending]": true, "translation pending": true,
}

func isPlaceholder(s string) bool {
	s = strings.ToLower(normalizeSpace(s))
	if placeholders[s] {
		return true
	}
	return placeholders[strings.Trim(s, " .,;:!?")]
}

// listPrefixRe matches leading bullets and enumerations: "1 -", "2.",
// "a)", "—", "•".
var listPrefixRe = regexp.MustCompile(`^(?:[-–—•*]+|\d+\s*[.)-]|[a-zA-Z]\))\s*`)

// Fallback derives a title and summary from the official text itself.
func Fallback(officialText string) law.Translation {
	text := normalizeSpace(officialText)
	for {
		stripped := listPrefixRe.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}
	if text == "" {
		return law.Pending()
	}

	title := firstSentence(text)
	if len([]rune(title)) > fallbackTitleChars {
		title = cutAtWord(text, fallbackTitleChars)
	}

	summary := text
	if len([]rune(summary)) > fallbackSummaryChars {
		summary = cutAtWord(text, fallbackSummaryChars) + "..."
	}
	return law.Translation{Title: title, Summary: summary}
}

func firstSentence(s string) string {
	for i, r := range s {
		if r == '.' || r == ';' || r == ':' || r == '!' || r == '?' {
			// "5.º" is not the end of a sentence.
			rest := s[i+1:]
			if rest == "" || strings.HasPrefix(rest, " ") {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	return s
}

// cutAtWord returns at most n runes of s, ending on a word boundary when
// one exists.
func cutAtWord(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:")
}
