package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/legalgraph/parser"
	"github.com/brunobiangulo/legalgraph/store"
)

// Config controls the chunking behaviour.
type Config struct {
	MaxTokens     int // Maximum estimated tokens per chunk.
	CharsPerToken int // Characters per token used by the estimate.
}

// Chunker cuts legal text into store chunks on article boundaries.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = 4
	}
	return &Chunker{cfg: cfg}
}

// Chunk joins the parsed sections in order and chunks the result.
func (c *Chunker) Chunk(sections []parser.Section) []store.Chunk {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if t := strings.TrimSpace(s.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return c.ChunkText(strings.Join(parts, "\n\n"))
}

// ChunkText packs whole articles into chunks of at most MaxTokens. An
// article too long for one chunk is cut at paragraph, then sentence,
// boundaries; its later pieces open the following chunks without a
// heading, which the builder treats as a continuation. Text is never
// duplicated across chunks.
func (c *Chunker) ChunkText(text string) []store.Chunk {
	var (
		out     []store.Chunk
		current strings.Builder
		tokens  int
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		out = append(out, c.newChunk(len(out), current.String()))
		current.Reset()
		tokens = 0
	}

	for _, part := range SplitByArticles(text) {
		cost := c.estimateTokens(part)
		if cost > c.cfg.MaxTokens {
			flush()
			for _, frag := range c.splitContent(part) {
				out = append(out, c.newChunk(len(out), frag))
			}
			continue
		}
		if tokens+cost > c.cfg.MaxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(part)
		tokens += cost
	}
	flush()
	return out
}

func (c *Chunker) newChunk(index int, content string) store.Chunk {
	content = strings.TrimSpace(content)
	return store.Chunk{
		Index:       index,
		Content:     content,
		Heading:     ArticleHeading(content),
		TokenCount:  c.estimateTokens(content),
		ContentHash: contentHash(content),
	}
}

// splitContent breaks a long text into fragments that each fit within
// MaxTokens, splitting at paragraph and then sentence boundaries.
func (c *Chunker) splitContent(text string) []string {
	if c.estimateTokens(text) <= c.cfg.MaxTokens {
		return []string{strings.TrimSpace(text)}
	}

	var fragments []string
	var current strings.Builder
	currentTokens := 0
	flush := func() {
		if current.Len() > 0 {
			fragments = append(fragments, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
	}

	for _, para := range splitParagraphs(text) {
		paraTokens := c.estimateTokens(para)

		// If a single paragraph exceeds MaxTokens, split it by sentences.
		if paraTokens > c.cfg.MaxTokens {
			flush()
			fragments = append(fragments, c.splitBySentences(para)...)
			continue
		}

		if currentTokens+paraTokens > c.cfg.MaxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}
	flush()
	return fragments
}

// splitBySentences breaks a paragraph into fragments at sentence
// boundaries. A single sentence longer than MaxTokens is cut by words.
func (c *Chunker) splitBySentences(text string) []string {
	var fragments []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range splitSentences(text) {
		sentTokens := c.estimateTokens(sent)
		if sentTokens > c.cfg.MaxTokens {
			if current.Len() > 0 {
				fragments = append(fragments, strings.TrimSpace(current.String()))
				current.Reset()
				currentTokens = 0
			}
			fragments = append(fragments, c.splitByWords(sent)...)
			continue
		}
		if currentTokens+sentTokens > c.cfg.MaxTokens && current.Len() > 0 {
			fragments = append(fragments, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if current.Len() > 0 {
		fragments = append(fragments, strings.TrimSpace(current.String()))
	}
	return fragments
}

func (c *Chunker) splitByWords(text string) []string {
	maxChars := c.cfg.MaxTokens * c.cfg.CharsPerToken
	var fragments []string
	var current strings.Builder
	for _, w := range strings.Fields(text) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(w) > maxChars {
			fragments = append(fragments, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		fragments = append(fragments, current.String())
	}
	return fragments
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// estimateTokens approximates the token count of text as runes divided by
// CharsPerToken, rounded up.
func (c *Chunker) estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + c.cfg.CharsPerToken - 1) / c.cfg.CharsPerToken
}

// splitParagraphs splits text on blank-line boundaries.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences is a simple sentence tokeniser. It splits on
// period/question-mark/exclamation followed by whitespace or end of
// string, so "5.º" and "n.º" stay intact.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' || runes[i] == ';' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// contentHash returns the SHA-256 hex digest of text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
