// Package llm is the model-invocation transport: chat and embedding
// providers, rate limiting, and schema-checked structured calls.
package llm

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
	// ResponseSchema asks for JSON matching a schema. Providers without
	// structured output support fall back to JSON mode.
	ResponseSchema *jsonschema.Schema `json:"-"`
	// SchemaName labels ResponseSchema for providers that require a name.
	SchemaName string `json:"-"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider" env:"PROVIDER"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model" yaml:"model" env:"MODEL"`
	BaseURL  string `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	APIKey   string `json:"api_key" yaml:"api_key" env:"API_KEY"`
}

// compatVendors lists the hosted and local services that speak the
// OpenAI chat-completions protocol, with their default base URLs.
var compatVendors = map[string]string{
	"openai":     "https://api.openai.com",
	"openrouter": "https://openrouter.ai/api",
	"groq":       "https://api.groq.com/openai",
	"xai":        "https://api.x.ai",
	"lmstudio":   "http://localhost:1234",
	"custom":     "",
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "gemini":
		return NewGemini(context.Background(), cfg)
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	}
	defaultURL, ok := compatVendors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	return newOpenAICompatProvider(cfg.Provider, cfg), nil
}
