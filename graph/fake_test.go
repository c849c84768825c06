package graph

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
)

// fakeModel answers structured calls by schema name. Article analyses are
// generated for every "### <number>" heading found in the prompt.
type fakeModel struct {
	mu    sync.Mutex
	calls map[string]int

	// refs are attached to the analysis of the matching article number.
	refs map[string][]CrossReference

	// handle, when set, may answer a call itself (handled=true).
	handle func(schema, prompt string, call int) (answer string, handled bool, err error)
}

func newFakeModel() *fakeModel {
	return &fakeModel{calls: make(map[string]int), refs: make(map[string][]CrossReference)}
}

func (f *fakeModel) count(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[schema]
}

func (f *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls[req.SchemaName]++
	n := f.calls[req.SchemaName]
	f.mu.Unlock()

	prompt := req.Messages[len(req.Messages)-1].Content
	if f.handle != nil {
		if out, ok, err := f.handle(req.SchemaName, prompt, n); ok {
			if err != nil {
				return nil, err
			}
			return &llm.ChatResponse{Content: out}, nil
		}
	}

	var v any
	switch req.SchemaName {
	case "article_analysis":
		batch := analysisBatch{Articles: []ArticleAnalysis{}}
		for _, num := range promptArticles(prompt) {
			batch.Articles = append(batch.Articles, f.analysis(num))
		}
		v = batch
	case "law_synthesis":
		v = LawSynthesis{
			SuggestedCategory: "fiscal",
			Translations: law.Bilingual{
				PT: law.Translation{Title: "Síntese", Summary: "Resumo da lei inteira"},
				EN: law.Translation{Title: "Synthesis", Summary: "Summary of the whole law"},
			},
		}
	case "batch_summary":
		v = preSummary{Summary: "resumo curto"}
	case "extracted_unit":
		text := prompt[strings.LastIndex(prompt, "TEXT:\n")+len("TEXT:\n"):]
		u := SplitArticles(text)
		if u.Articles == nil {
			u.Articles = []ExtractedArticle{}
		}
		v = u
	default:
		return &llm.ChatResponse{Content: "plain answer"}, nil
	}
	b, _ := json.Marshal(v)
	return &llm.ChatResponse{Content: string(b)}, nil
}

func (f *fakeModel) analysis(number string) ArticleAnalysis {
	f.mu.Lock()
	refs := f.refs[number]
	f.mu.Unlock()
	return newAnalysis(number, refs...)
}

func (f *fakeModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t) % 7), 1, 0, 0.5}
	}
	return out, nil
}

// newAnalysis builds a well-formed analysis with summaries that do not
// echo any article text.
func newAnalysis(number string, refs ...CrossReference) ArticleAnalysis {
	if refs == nil {
		refs = []CrossReference{}
	}
	title, summary := "Resumo de "+number, "Explicação própria do conteúdo normativo da disposição "+number
	if number == PreambleNumber {
		title, summary = "Lei de teste", "Diploma que regula licenças administrativas"
	}
	return ArticleAnalysis{
		ArticleNumber:     number,
		SuggestedCategory: "ADMINISTRATIVE",
		Tags: law.TagSet{
			Persons:       []string{},
			Organizations: []string{"Assembleia da República"},
			Concepts:      []string{"licença"},
		},
		CrossReferences: refs,
		Translations: law.Bilingual{
			PT: law.Translation{Title: title, Summary: summary},
			EN: law.Translation{Title: "Summary of " + number, Summary: "Own explanation of provision " + number},
		},
	}
}

func promptArticles(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "### ") {
			out = append(out, strings.TrimPrefix(line, "### "))
		}
	}
	return out
}

// upperTranslator "translates" by upper-casing.
type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, pt string) (string, error) {
	return strings.ToUpper(pt), nil
}
