package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrSchemaViolation marks a model answer that is not valid JSON for the
// requested schema.
var ErrSchemaViolation = errors.New("llm: response does not match schema")

// Schema is a named, resolved JSON schema generated from a Go type.
type Schema struct {
	Name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// SchemaFor builds the schema of T. Object schemas accept properties
// beyond the declared ones; only declared shapes and required keys are
// enforced.
func SchemaFor[T any](name string) (*Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	allowExtraProperties(s)
	r, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving schema %s: %w", name, err)
	}
	return &Schema{Name: name, schema: s, resolved: r}, nil
}

// MustSchemaFor is SchemaFor for package-level variables.
func MustSchemaFor[T any](name string) *Schema {
	s, err := SchemaFor[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// JSONSchema returns the underlying schema document.
func (s *Schema) JSONSchema() *jsonschema.Schema { return s.schema }

// Validate checks a decoded JSON value against the schema.
func (s *Schema) Validate(instance any) error {
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, s.Name, err)
	}
	return nil
}

func allowExtraProperties(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	s.AdditionalProperties = nil
	for _, p := range s.Properties {
		allowExtraProperties(p)
	}
	allowExtraProperties(s.Items)
}

const jsonInstruction = "You are a legal analyst. Respond only with one JSON object that follows the requested structure. Do not add commentary."

// Invoker performs schema-checked model calls: a prompt goes in, a value
// decoded from JSON that passed validation comes out.
type Invoker struct {
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithModel overrides the provider's default model.
func WithModel(model string) InvokerOption {
	return func(i *Invoker) { i.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) InvokerOption {
	return func(i *Invoker) { i.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) InvokerOption {
	return func(i *Invoker) { i.maxTokens = n }
}

// NewInvoker wraps a provider.
func NewInvoker(p Provider, opts ...InvokerOption) *Invoker {
	inv := &Invoker{provider: p, temperature: 0.1}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

// Invoke sends prompt, asks for JSON matching schema, validates the answer
// and decodes it into out. Malformed or non-conforming answers return an
// error wrapping ErrSchemaViolation; transport failures are returned as is.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, schema *Schema, out any) error {
	req := ChatRequest{
		Model: inv.model,
		Messages: []Message{
			{Role: "system", Content: jsonInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature:    inv.temperature,
		MaxTokens:      inv.maxTokens,
		ResponseFormat: "json_object",
	}
	if schema != nil {
		req.ResponseSchema = schema.schema
		req.SchemaName = schema.Name
	}

	resp, err := inv.provider.Chat(ctx, req)
	if err != nil {
		return err
	}

	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	if schema != nil {
		var instance any
		if err := json.Unmarshal([]byte(raw), &instance); err != nil {
			return fmt.Errorf("%w: invalid JSON: %v", ErrSchemaViolation, err)
		}
		if err := schema.Validate(instance); err != nil {
			return err
		}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: decoding: %v", ErrSchemaViolation, err)
	}
	return nil
}
