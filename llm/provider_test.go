package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.openAICompatProvider"},
		{"openrouter", "*llm.openAICompatProvider"},
		{"openai", "*llm.openAICompatProvider"},
		{"groq", "*llm.openAICompatProvider"},
		{"xai", "*llm.openAICompatProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
			}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			gotType := fmt.Sprintf("%T", p)
			if gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderGemini(t *testing.T) {
	p, err := NewProvider(Config{Provider: "gemini", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewProvider(gemini): %v", err)
	}
	gp, ok := p.(*geminiProvider)
	if !ok {
		t.Fatalf("type = %T, want *llm.geminiProvider", p)
	}
	if gp.model != "gemini-2.5-flash" {
		t.Errorf("default model = %q", gp.model)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist", Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	want := "unknown llm provider: doesnotexist"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProviderEmpty(t *testing.T) {
	_, err := NewProvider(Config{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
	want := "llm provider not specified"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func baseURLOf(t *testing.T, p Provider) string {
	t.Helper()
	v := reflect.ValueOf(p).Elem()
	return v.FieldByName("base").FieldByName("cfg").FieldByName("BaseURL").String()
}

// TestDefaultBaseURLs verifies that when BaseURL is empty in the config,
// each vendor gets its default.
func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"openrouter", "https://openrouter.ai/api"},
		{"openai", "https://api.openai.com"},
		{"groq", "https://api.groq.com/openai"},
		{"xai", "https://api.x.ai"},
		{"custom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}
			if got := baseURLOf(t, p); got != tt.wantURL {
				t.Errorf("default BaseURL for %q = %q, want %q", tt.provider, got, tt.wantURL)
			}
		})
	}
}

func TestExplicitBaseURLPreserved(t *testing.T) {
	customURL := "http://my-server:9999"
	for _, provider := range []string{"ollama", "lmstudio", "openrouter", "xai", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: provider, Model: "test-model", BaseURL: customURL})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", provider, err)
			}
			if got := baseURLOf(t, p); got != customURL {
				t.Errorf("BaseURL = %q, want %q", got, customURL)
			}
		})
	}
}

func fastRetries(t *testing.T) {
	t.Helper()
	oldBase, oldRate := baseRetryDelay, minRateLimitDelay
	baseRetryDelay, minRateLimitDelay = time.Millisecond, time.Millisecond
	t.Cleanup(func() { baseRetryDelay, minRateLimitDelay = oldBase, oldRate })
}

func chatHandler(t *testing.T, content string, seen *chatCompletionRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type sampleAnswer struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestChatSendsJSONSchema(t *testing.T) {
	var seen chatCompletionRequest
	srv := httptest.NewServer(chatHandler(t, `{"name":"x","count":1}`, &seen))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, Model: "test-model"})
	schema := MustSchemaFor[sampleAnswer]("sample")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseSchema: schema.JSONSchema(),
		SchemaName:     schema.Name,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", resp.TotalTokens)
	}
	if seen.ResponseFormat == nil || seen.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response_format = %+v, want json_schema", seen.ResponseFormat)
	}
	if seen.ResponseFormat.JSONSchema == nil || seen.ResponseFormat.JSONSchema.Name != "sample" {
		t.Errorf("json_schema name not sent: %+v", seen.ResponseFormat.JSONSchema)
	}
	if seen.Model != "test-model" {
		t.Errorf("model = %q, want config default", seen.Model)
	}
}

func TestChatJSONObjectMode(t *testing.T) {
	var seen chatCompletionRequest
	srv := httptest.NewServer(chatHandler(t, `{}`, &seen))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), ChatRequest{ResponseFormat: "json_object"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if seen.ResponseFormat == nil || seen.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", seen.ResponseFormat)
	}
}

func TestDoPostNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDoPostRetriesUnavailable(t *testing.T) {
	fastRetries(t)
	var calls atomic.Int32
	ok := chatHandler(t, "done", nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("Content = %q", resp.Content)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.25],[1,0]]}`))
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL, Model: "nomic"})
	got, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[0][1] != 0.25 || got[1][0] != 1 {
		t.Errorf("Embed = %v", got)
	}
}

// scriptedProvider answers Chat calls from a fixed list.
type scriptedProvider struct {
	answers []string
	err     error
	calls   int
	last    ChatRequest
}

func (s *scriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.last = req
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	a := s.answers[0]
	if len(s.answers) > 1 {
		s.answers = s.answers[1:]
	}
	return &ChatResponse{Content: a}, nil
}

func (s *scriptedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	return make([][]float32, len(texts)), s.err
}

func TestRateLimitedHonoursContext(t *testing.T) {
	inner := &scriptedProvider{answers: []string{"ok"}}
	p := NewRateLimited(inner, 0.001, 1)

	if _, err := p.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(ctx, []string{"x"}); err == nil {
		t.Fatal("expected limiter error once the bucket is empty")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestNewRateLimitedDisabled(t *testing.T) {
	inner := &scriptedProvider{}
	if p := NewRateLimited(inner, 0, 1); p != Provider(inner) {
		t.Error("rps 0 should return the provider unchanged")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
		wantErr        bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"chatter", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`, false},
		{"none", "no object here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInvoker(t *testing.T) {
	schema := MustSchemaFor[sampleAnswer]("sample")
	tests := []struct {
		name          string
		answer        string
		wantViolation bool
		want          sampleAnswer
	}{
		{"valid", `{"name":"Lei","count":3}`, false, sampleAnswer{"Lei", 3}},
		{"extra keys allowed", `{"name":"Lei","count":3,"note":"x"}`, false, sampleAnswer{"Lei", 3}},
		{"fenced", "```json\n{\"name\":\"a\",\"count\":0}\n```", false, sampleAnswer{"a", 0}},
		{"missing key", `{"name":"Lei"}`, true, sampleAnswer{}},
		{"wrong type", `{"name":"Lei","count":"three"}`, true, sampleAnswer{}},
		{"prose", `I cannot help with that.`, true, sampleAnswer{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{answers: []string{tt.answer}}
			var got sampleAnswer
			err := NewInvoker(p).Invoke(context.Background(), "prompt", schema, &got)
			if tt.wantViolation {
				if !errors.Is(err, ErrSchemaViolation) {
					t.Fatalf("err = %v, want ErrSchemaViolation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if p.last.SchemaName != "sample" || p.last.ResponseSchema == nil {
				t.Error("schema not attached to request")
			}
		})
	}
}

func TestInvokerTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	p := &scriptedProvider{err: boom}
	var out sampleAnswer
	err := NewInvoker(p, WithModel("m"), WithMaxTokens(10)).Invoke(context.Background(), "x", MustSchemaFor[sampleAnswer]("s"), &out)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if errors.Is(err, ErrSchemaViolation) {
		t.Error("transport error must not be reported as a schema violation")
	}
	if p.last.Model != "m" || p.last.MaxTokens != 10 {
		t.Errorf("options not applied: %+v", p.last)
	}
}
