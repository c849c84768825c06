package parser

import (
	"context"
	"strings"
)

// ParseResult is what a parser produces from a source document.
type ParseResult struct {
	Sections []Section // Ordered sections, one per page or file
	Method   string    // "native"
	Metadata map[string]string
}

// Section is a contiguous piece of document text.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Text joins the sections of a result in order, separated by blank lines.
func (r *ParseResult) Text() string {
	parts := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		if c := strings.TrimSpace(s.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}
