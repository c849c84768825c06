package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextParser handles plain text and markdown files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("reading text file %s: not valid UTF-8", filepath.Base(path))
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return &ParseResult{Method: "native"}, nil
	}

	return &ParseResult{
		Sections: []Section{{
			Heading:    filepath.Base(path),
			Content:    content,
			PageNumber: 1,
		}},
		Method: "native",
	}, nil
}
