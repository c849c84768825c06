package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a model answer contains no JSON object.
var ErrNoJSON = errors.New("llm: no JSON object found in response")

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON finds the JSON object in a model answer, tolerating code
// fences and chatter around it.
func ExtractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}

	return "", ErrNoJSON
}
