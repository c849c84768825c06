package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiProvider talks to the Gemini API through the official SDK, which
// supports response schemas natively.
//
// Chat models: gemini-2.5-flash, gemini-2.5-pro.
// Embedding models: gemini-embedding-001, text-embedding-004.
type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini creates a provider for Google Gemini. The API key comes from
// the config or, when empty, from GOOGLE_API_KEY / GEMINI_API_KEY.
func NewGemini(ctx context.Context, cfg Config) (Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	temp := float32(req.Temperature)
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ResponseSchema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseJsonSchema = req.ResponseSchema
	} else if req.ResponseFormat == "json_object" {
		gc.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			gc.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &ChatResponse{Content: resp.Text(), Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		result, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(text),
			&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("gemini embed: no embeddings returned")
		}
		out = append(out, result.Embeddings[0].Values)
	}
	return out, nil
}
