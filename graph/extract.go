package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brunobiangulo/legalgraph/llm"
)

// Extractor splits a chunk's text into preamble and articles.
type Extractor interface {
	Extract(ctx context.Context, text string) (ExtractedUnit, error)
}

// articleMarkerRe matches an article heading at the start of a line:
// "Artigo 1.º", "Artigo 5.º-A", "Art. 12.o", "Artigo único", "Article 3".
var articleMarkerRe = regexp.MustCompile(`(?im)^[ \t]*((?:Artigo|Art\.)[ \t]+(?:\d+[ \t]*\.?[ \t]*[º°o]?(?:[ \t]*-[ \t]*[A-Z]\b)?|[úu]nico)|Article[ \t]+\d+(?:-[A-Z])?)`)

// RuleExtractor applies the delimiter rule with a regular expression.
type RuleExtractor struct{}

// Extract never fails.
func (RuleExtractor) Extract(_ context.Context, text string) (ExtractedUnit, error) {
	return SplitArticles(text), nil
}

// SplitArticles returns the text before the first article marker as the
// preamble and each marker through the next one as an article. Without
// markers the whole text is preamble.
func SplitArticles(text string) ExtractedUnit {
	locs := articleMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return ExtractedUnit{PreambleText: strings.TrimSpace(text)}
	}

	unit := ExtractedUnit{PreambleText: strings.TrimSpace(text[:locs[0][0]])}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		unit.Articles = append(unit.Articles, ExtractedArticle{
			ArticleNumber: strings.TrimSpace(text[loc[2]:loc[3]]),
			OfficialText:  strings.TrimSpace(text[loc[0]:end]),
		})
	}
	return unit
}

// ModelExtractor asks the model to apply the delimiter rule and checks the
// answer before anything downstream sees it.
type ModelExtractor struct {
	inv *llm.Invoker
}

// NewModelExtractor creates an extractor backed by inv.
func NewModelExtractor(inv *llm.Invoker) *ModelExtractor {
	return &ModelExtractor{inv: inv}
}

func (e *ModelExtractor) Extract(ctx context.Context, text string) (ExtractedUnit, error) {
	var unit ExtractedUnit
	if err := e.inv.Invoke(ctx, fmt.Sprintf(extractionPrompt, text), extractionSchema, &unit); err != nil {
		return ExtractedUnit{}, fmt.Errorf("extraction call: %w", err)
	}
	if err := validateUnit(unit); err != nil {
		return ExtractedUnit{}, err
	}
	return unit, nil
}

var errEmptyArticle = errors.New("extracted article has an empty number or text")

func validateUnit(u ExtractedUnit) error {
	for i, a := range u.Articles {
		if strings.TrimSpace(a.ArticleNumber) == "" || strings.TrimSpace(a.OfficialText) == "" {
			return fmt.Errorf("%w: article %d (%q)", errEmptyArticle, i, a.ArticleNumber)
		}
	}
	return nil
}

// ArticleText is an article ready for analysis.
type ArticleText struct {
	Number string
	Text   string
	Order  int
	Chunk  int
}

// ChunkUnit is the extraction result of one chunk.
type ChunkUnit struct {
	Index int
	Unit  ExtractedUnit
}

// Document is the assembled content of a source.
type Document struct {
	Preamble string
	Articles []ArticleText
}

// Numbers returns the article labels in order.
func (d Document) Numbers() []string {
	out := make([]string, len(d.Articles))
	for i, a := range d.Articles {
		out[i] = a.Number
	}
	return out
}

// Assemble joins per-chunk units into one document. The preamble of a
// chunk after the first continues the previous article; with no previous
// article it extends the law preamble. Repeated labels get a " [n]" suffix
// so labels stay unique within the law.
func Assemble(units []ChunkUnit) Document {
	var doc Document
	seen := make(map[string]int)
	for i, cu := range units {
		if pre := strings.TrimSpace(cu.Unit.PreambleText); pre != "" {
			switch {
			case i > 0 && len(doc.Articles) > 0:
				last := &doc.Articles[len(doc.Articles)-1]
				last.Text += "\n\n" + pre
			case doc.Preamble == "":
				doc.Preamble = pre
			default:
				doc.Preamble += "\n\n" + pre
			}
		}
		for _, a := range cu.Unit.Articles {
			label := strings.TrimSpace(a.ArticleNumber)
			seen[label]++
			if n := seen[label]; n > 1 {
				slog.Warn("graph: duplicate article label", "article", label, "occurrence", n, "chunk", cu.Index)
				label = fmt.Sprintf("%s [%d]", label, n)
			}
			doc.Articles = append(doc.Articles, ArticleText{
				Number: label,
				Text:   strings.TrimSpace(a.OfficialText),
				Order:  len(doc.Articles),
				Chunk:  cu.Index,
			})
		}
	}
	return doc
}
