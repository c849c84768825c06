package chunker

import (
	"strings"
	"testing"

	"github.com/brunobiangulo/legalgraph/parser"
)

const sampleLaw = `Lei n.º 12/2020, de 5 de junho de 2020
A Assembleia da República decreta o seguinte:

CAPÍTULO I
Disposições gerais

Artigo 1.º
Objeto
A presente lei regula o licenciamento.

Artigo 2.º-A
Âmbito
Aplica-se a todo o território nacional, nos termos do artigo 1.º.

Art. 3.º Entrada em vigor no dia seguinte.`

// ---------------------------------------------------------------------------
// Article boundaries
// ---------------------------------------------------------------------------

func TestIsArticleHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Artigo 1.º", true},
		{"  Artigo 12.º-B", true},
		{"ARTIGO 3.o", true},
		{"Art. 4.º Objeto", true},
		{"Artigo único", true},
		{"Article 7", true},
		{"Nos termos do artigo 5.º", false},
		{"Artigos 1.º a 3.º", false},
		{"CAPÍTULO I", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsArticleHeading(tt.line); got != tt.want {
			t.Errorf("IsArticleHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSplitByArticles(t *testing.T) {
	parts := SplitByArticles(sampleLaw)
	if len(parts) != 4 {
		t.Fatalf("got %d parts: %q", len(parts), parts)
	}
	if parts[0] != "Lei n.º 12/2020, de 5 de junho de 2020\nA Assembleia da República decreta o seguinte:" {
		t.Errorf("preamble = %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "CAPÍTULO I\nDisposições gerais\n\nArtigo 1.º") {
		t.Errorf("division heading should travel with the first article: %q", parts[1])
	}
	if !strings.HasPrefix(parts[2], "Artigo 2.º-A") || !strings.HasPrefix(parts[3], "Art. 3.º") {
		t.Errorf("parts = %q", parts)
	}
}

func TestSplitByArticlesNoArticles(t *testing.T) {
	if got := SplitByArticles("  apenas texto  "); len(got) != 1 || got[0] != "apenas texto" {
		t.Errorf("got %q", got)
	}
	if got := SplitByArticles(" \n "); got != nil {
		t.Errorf("got %q, want nil", got)
	}
}

func TestArticleHeading(t *testing.T) {
	if got := ArticleHeading("CAPÍTULO I\nArtigo 5.º-A\nTexto"); got != "Artigo 5.º-A" {
		t.Errorf("ArticleHeading = %q", got)
	}
	if got := ArticleHeading("sem artigos"); got != "" {
		t.Errorf("ArticleHeading = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Chunking
// ---------------------------------------------------------------------------

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	if c.cfg.MaxTokens != 2048 || c.cfg.CharsPerToken != 4 {
		t.Errorf("defaults = %+v", c.cfg)
	}
}

func TestChunkSmallLawIsOneChunk(t *testing.T) {
	c := New(Config{})
	chunks := c.Chunk([]parser.Section{{Content: sampleLaw, PageNumber: 1}})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	ch := chunks[0]
	if ch.Heading != "Artigo 1.º" {
		t.Errorf("heading = %q", ch.Heading)
	}
	if ch.TokenCount <= 0 || ch.ContentHash == "" {
		t.Errorf("chunk = %+v", ch)
	}
}

func TestChunkKeepsArticlesWhole(t *testing.T) {
	c := New(Config{MaxTokens: 30, CharsPerToken: 4})
	chunks := c.ChunkText(sampleLaw)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if ch.TokenCount > 30 {
			t.Errorf("chunk %d over budget: %d tokens", i, ch.TokenCount)
		}
	}
	// Every article heading opens a chunk or follows a blank line within one.
	for _, h := range []string{"Artigo 1.º", "Artigo 2.º-A", "Art. 3.º"} {
		found := false
		for _, ch := range chunks {
			for _, part := range SplitByArticles(ch.Content) {
				if strings.HasPrefix(part, h) || strings.Contains(part, "\n\n"+h) {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("article %q was cut", h)
		}
	}
}

func TestChunkSplitsOversizedArticle(t *testing.T) {
	para := strings.Repeat("O requerente apresenta o pedido junto da entidade competente. ", 10)
	text := "Artigo 1.º\n" + para + "\n\n" + para + "\n\nArtigo 2.º\nCurto."
	c := New(Config{MaxTokens: 200, CharsPerToken: 4})
	chunks := c.ChunkText(text)

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, "Artigo 1.º") {
		t.Errorf("first chunk = %q", chunks[0].Content[:20])
	}
	if IsArticleHeading(strings.SplitN(chunks[1].Content, "\n", 2)[0]) {
		t.Error("continuation chunk should not start with an article heading")
	}
	last := chunks[len(chunks)-1]
	if last.Content != "Artigo 2.º\nCurto." || last.Heading != "Artigo 2.º" {
		t.Errorf("last chunk = %+v", last)
	}

	// Nothing is duplicated or lost.
	var words int
	for _, ch := range chunks {
		words += len(strings.Fields(ch.Content))
	}
	if words != len(strings.Fields(text)) {
		t.Errorf("word count %d, want %d", words, len(strings.Fields(text)))
	}
}

func TestSplitBySentencesCutsLongSentence(t *testing.T) {
	c := New(Config{MaxTokens: 5, CharsPerToken: 4})
	frags := c.splitBySentences(strings.Repeat("palavra ", 20))
	if len(frags) < 4 {
		t.Fatalf("got %d fragments", len(frags))
	}
	for _, f := range frags {
		if c.estimateTokens(f) > 5 {
			t.Errorf("fragment %q over budget", f)
		}
	}
}

func TestSplitSentencesKeepsOrdinals(t *testing.T) {
	got := splitSentences("Nos termos do artigo 5.º do Decreto-Lei n.º 30/2017. Fim; outra.")
	if len(got) != 3 || got[0] != "Nos termos do artigo 5.º do Decreto-Lei n.º 30/2017." {
		t.Errorf("sentences = %q", got)
	}
}

func TestContentHash(t *testing.T) {
	if contentHash("a") == contentHash("b") || contentHash("a") != contentHash("a") {
		t.Error("content hash is not a function of content")
	}
	if len(contentHash("")) != 64 {
		t.Error("expected a hex SHA-256 digest")
	}
}

func TestChunkEmpty(t *testing.T) {
	if got := New(Config{}).Chunk(nil); len(got) != 0 {
		t.Errorf("got %d chunks", len(got))
	}
}
