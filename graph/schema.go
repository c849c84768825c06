package graph

import (
	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
)

// ExtractedUnit is the split of one chunk into preamble and articles.
type ExtractedUnit struct {
	PreambleText string             `json:"preamble_text" jsonschema:"text before the first article marker or empty"`
	Articles     []ExtractedArticle `json:"articles" jsonschema:"articles in document order"`
}

// ExtractedArticle is one article label and its verbatim text.
type ExtractedArticle struct {
	ArticleNumber string `json:"article_number" jsonschema:"article label as written such as Artigo 3.º"`
	OfficialText  string `json:"official_text" jsonschema:"verbatim article text including its heading"`
}

// CrossReference is a mention of another law, or of another article of
// the same law, found in an article.
type CrossReference struct {
	Relationship     string `json:"relationship" jsonschema:"references or amends or revokes or modifies or regulates or references_internal"`
	Type             string `json:"type,omitempty" jsonschema:"law type as written such as Decreto-Lei"`
	Number           string `json:"number,omitempty" jsonschema:"official number such as 30/2017"`
	Article          string `json:"article,omitempty" jsonschema:"referenced article such as Artigo 5.º"`
	Description      string `json:"description,omitempty"`
	URL              string `json:"url,omitempty"`
	FullSupersession bool   `json:"full_supersession,omitempty" jsonschema:"true when the text replaces the target entirely"`
}

// ArticleAnalysis is the model's structured reading of one article.
type ArticleAnalysis struct {
	ArticleNumber     string           `json:"article_number"`
	SuggestedCategory string           `json:"suggested_category"`
	Tags              law.TagSet       `json:"tags"`
	CrossReferences   []CrossReference `json:"cross_references"`
	Translations      law.Bilingual    `json:"translations"`
}

// analysisBatch is the model answer for one Map batch.
type analysisBatch struct {
	Articles []ArticleAnalysis `json:"articles"`
}

// LawSynthesis is the law-level result of the Reduce stage.
type LawSynthesis struct {
	SuggestedCategory string        `json:"suggested_category"`
	Translations      law.Bilingual `json:"translations"`
}

// preSummary is an intermediate Reduce result for one batch of lines.
type preSummary struct {
	Summary string `json:"summary"`
}

var (
	extractionSchema = llm.MustSchemaFor[ExtractedUnit]("extracted_unit")
	analysisSchema   = llm.MustSchemaFor[analysisBatch]("article_analysis")
	synthesisSchema  = llm.MustSchemaFor[LawSynthesis]("law_synthesis")
	preSummarySchema = llm.MustSchemaFor[preSummary]("batch_summary")
)
