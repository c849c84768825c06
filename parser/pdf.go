package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// runningLineShare is the share of pages a line must repeat on to be
// treated as a running header or footer.
const runningLineShare = 0.6

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	pages := make([]Section, 0, totalPages)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Section{Content: text, PageNumber: i})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF %s", path)
	}

	return &ParseResult{
		Sections: stripRunningLines(pages),
		Method:   "native",
		Metadata: map[string]string{"pages": fmt.Sprint(totalPages)},
	}, nil
}

var (
	pageNumberRe = regexp.MustCompile(`^(?:(?i:p[áa]g(?:ina)?\.?)\s*)?\d{1,4}(?:\s*/\s*\d{1,4})?$`)
	digitsRe     = regexp.MustCompile(`\d+`)
)

func atEdge(i, n int) bool {
	return i < edgeLines || i >= n-edgeLines
}

// lineKey normalises a line so running headers that differ only in page
// or issue numbers compare equal.
func lineKey(line string) string {
	return digitsRe.ReplaceAllString(strings.Join(strings.Fields(line), " "), "#")
}

// edgeLines is how many lines at the top and bottom of a page can be a
// running header or footer.
const edgeLines = 2

// stripRunningLines removes bare page numbers and page-edge lines that
// repeat on most pages, such as the Diário da República header. Documents
// shorter than three pages only lose page numbers.
func stripRunningLines(pages []Section) []Section {
	counts := make(map[string]int)
	if len(pages) >= 3 {
		for _, p := range pages {
			seen := make(map[string]bool)
			lines := strings.Split(p.Content, "\n")
			for i, line := range lines {
				if !atEdge(i, len(lines)) {
					continue
				}
				k := lineKey(line)
				if k != "" && !seen[k] {
					seen[k] = true
					counts[k]++
				}
			}
		}
	}
	threshold := max(int(float64(len(pages))*runningLineShare+0.5), 2)

	out := make([]Section, 0, len(pages))
	for _, p := range pages {
		var kept []string
		lines := strings.Split(p.Content, "\n")
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if pageNumberRe.MatchString(trimmed) {
				continue
			}
			if atEdge(i, len(lines)) && counts[lineKey(trimmed)] >= threshold {
				continue
			}
			kept = append(kept, line)
		}
		content := strings.TrimSpace(strings.Join(kept, "\n"))
		if content == "" {
			continue
		}
		p.Content = content
		out = append(out, p)
	}
	return out
}
