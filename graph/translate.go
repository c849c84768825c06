package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brunobiangulo/legalgraph/llm"
)

// Translator renders Portuguese text in English.
type Translator interface {
	Translate(ctx context.Context, pt string) (string, error)
}

// ModelTranslator translates with a chat model.
type ModelTranslator struct {
	provider llm.Provider
	model    string
}

// NewModelTranslator creates a translator. An empty model uses the
// provider's default.
func NewModelTranslator(p llm.Provider, model string) *ModelTranslator {
	return &ModelTranslator{provider: p, model: model}
}

var errEmptyTranslation = errors.New("graph: empty translation")

func (t *ModelTranslator) Translate(ctx context.Context, pt string) (string, error) {
	if strings.TrimSpace(pt) == "" {
		return "", nil
	}
	resp, err := t.provider.Chat(ctx, llm.ChatRequest{
		Model:       t.model,
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(translationPrompt, pt)}},
		Temperature: 0.0,
	})
	if err != nil {
		return "", fmt.Errorf("translation call: %w", err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", errEmptyTranslation
	}
	return out, nil
}
