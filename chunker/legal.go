package chunker

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Article boundary detection
// ---------------------------------------------------------------------------

// articlePattern matches an article heading at the start of a line:
// "Artigo 5.º", "Artigo 5.º-A", "Art. 12.o", "Artigo único", "Article 3".
var articlePattern = regexp.MustCompile(`(?i)^(?:(?:artigo|art\.)[ \t]+(?:\d+[ \t]*\.?[ \t]*[º°o]?(?:[ \t]*-[ \t]*[A-Z]\b)?|[úu]nico)|article[ \t]+\d+(?:-[A-Z])?)`)

// structurePattern matches division headings that precede articles:
// "CAPÍTULO II", "Secção I", "TÍTULO III", "ANEXO".
var structurePattern = regexp.MustCompile(`(?i)^(?:cap[íi]tulo|sec[çc][ãa]o|subsec[çc][ãa]o|t[íi]tulo|parte|livro|anexo)\b`)

// IsArticleHeading reports whether a line starts a new article.
func IsArticleHeading(line string) bool {
	return articlePattern.MatchString(strings.TrimSpace(line))
}

// DetectArticleBoundaries returns the byte offsets of the lines that
// start articles. A division heading ("CAPÍTULO I") directly above an
// article moves the boundary up so the heading travels with the article.
func DetectArticleBoundaries(text string) []int {
	lines := strings.Split(text, "\n")
	var boundaries []int
	offset := 0
	pending := -1 // offset of a division heading awaiting its first article

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case articlePattern.MatchString(trimmed):
			if pending >= 0 {
				boundaries = append(boundaries, pending)
				pending = -1
			} else {
				boundaries = append(boundaries, offset)
			}
		case structurePattern.MatchString(trimmed):
			if pending < 0 {
				pending = offset
			}
		case trimmed != "" && pending >= 0 && !isShortTitle(trimmed):
			pending = -1
		}
		offset += len(line) + 1 // +1 for the newline
	}
	return boundaries
}

// isShortTitle reports whether a line looks like the title line under a
// division heading rather than body text.
func isShortTitle(line string) bool {
	return len([]rune(line)) <= 80 && !strings.HasSuffix(line, ".")
}

// SplitByArticles splits text at article boundaries so that each returned
// string after the first starts with an article heading (or its division
// heading). Text before the first article (the preamble) is returned as
// the first element if non-empty.
func SplitByArticles(text string) []string {
	boundaries := DetectArticleBoundaries(text)
	if len(boundaries) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var parts []string
	if preamble := strings.TrimSpace(text[:boundaries[0]]); preamble != "" {
		parts = append(parts, preamble)
	}
	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		if part := strings.TrimSpace(text[b:end]); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// ArticleHeading returns the first article heading in text, or "".
func ArticleHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := articlePattern.FindString(trimmed); m != "" {
			return m
		}
	}
	return ""
}
