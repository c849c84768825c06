// Package legalgraph builds a knowledge graph of Portuguese legislation:
// laws, versioned articles, tags and typed relationships between laws.
package legalgraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/legalgraph/chunker"
	"github.com/brunobiangulo/legalgraph/graph"
	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
	"github.com/brunobiangulo/legalgraph/parser"
	"github.com/brunobiangulo/legalgraph/store"
)

// Engine is the main entry point for building and reading the law graph.
type Engine interface {
	// IngestSource parses and chunks a source document. It skips the work
	// when the content hash is unchanged.
	IngestSource(ctx context.Context, path string, opts ...IngestOption) (*Source, error)

	// Build runs the knowledge-graph pipeline over an ingested source.
	Build(ctx context.Context, sourceID string) (*graph.Report, error)

	// SeedLaws registers the laws listed in an .xlsx registry so that
	// references to them resolve before they are ingested.
	SeedLaws(ctx context.Context, path string) (int, error)

	GetLaw(ctx context.Context, id int64) (*LawDetail, error)
	ListLaws(ctx context.Context) ([]store.Law, error)
	ListSources(ctx context.Context) ([]store.Source, error)

	// Related returns the laws within depth hops of a law.
	Related(ctx context.Context, lawID int64, depth int) (*graph.Neighborhood, error)

	// SearchArticles runs a full-text query over article versions.
	SearchArticles(ctx context.Context, query string, limit int) ([]store.ArticleHit, error)

	// SimilarArticles ranks article versions by summary embedding distance.
	SimilarArticles(ctx context.Context, text string, k int) ([]store.ArticleHit, error)

	DeleteLaw(ctx context.Context, id int64) error

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Source is an ingested source document.
type Source struct {
	store.Source
	Chunks    int  `json:"chunks"`
	Unchanged bool `json:"unchanged,omitempty"`
}

// LawDetail is a law with its articles, versions, tags and edges.
type LawDetail struct {
	store.Law
	Articles          []store.Article          `json:"articles"`
	Versions          []store.Version          `json:"versions"`
	TagList           []store.Tag              `json:"tag_list"`
	Outgoing          []store.Relationship     `json:"outgoing"`
	Incoming          []store.Relationship     `json:"incoming"`
	ArticleReferences []store.ArticleReference `json:"article_references"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	publishedAt  string
	metadata     map[string]string
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithPublishedAt records the publication date of the source. It is the
// enactment date of last resort when the text carries none.
func WithPublishedAt(date string) IngestOption {
	return func(o *ingestOptions) { o.publishedAt = date }
}

// WithMetadata attaches custom metadata to the ingested source.
func WithMetadata(metadata map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = metadata }
}

// sourcePending marks a source that is chunked but not yet built.
const sourcePending = "pending"

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	embedLLM llm.Provider
	parsers  *parser.Registry
	chunkr   *chunker.Chunker
	graphB   *graph.Builder
}

// New creates a new legalgraph engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dbPath, err := cfg.resolveDBPath()
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	chatLLM = llm.NewRateLimited(chatLLM, cfg.RequestsPerSecond, cfg.RequestBurst)

	var embedLLM llm.Provider
	if cfg.Embedding.Provider != "" {
		embedLLM, err = llm.NewProvider(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	var tr graph.Translator
	if cfg.Translation.Provider != "" {
		trLLM, err := llm.NewProvider(cfg.Translation)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating translation provider: %w", err)
		}
		tr = graph.NewModelTranslator(llm.NewRateLimited(trLLM, cfg.RequestsPerSecond, cfg.RequestBurst), cfg.Translation.Model)
	}

	return newEngine(cfg, s, chatLLM, embedLLM, tr), nil
}

func newEngine(cfg Config, s *store.Store, chat, embed llm.Provider, tr graph.Translator) *engine {
	return &engine{
		cfg:      cfg,
		store:    s,
		chatLLM:  chat,
		embedLLM: embed,
		parsers:  parser.NewRegistry(),
		chunkr: chunker.New(chunker.Config{
			MaxTokens:     cfg.MaxChunkTokens,
			CharsPerToken: cfg.CharsPerToken,
		}),
		graphB: graph.NewBuilder(s, chat, embed, tr, cfg.graphConfig()),
	}
}

// IngestSource parses a document and stores its chunks.
func (e *engine) IngestSource(ctx context.Context, path string, opts ...IngestOption) (*Source, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReparse {
		existing, err := e.store.GetSourceByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash {
			chunks, err := e.store.GetChunks(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			return &Source{Source: *existing, Chunks: len(chunks), Unchanged: true}, nil
		}
	}

	format := parser.FormatOf(absPath)
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(absPath)
	slog.Info("ingest: parsing source", "file", filename, "format", format)
	start := time.Now()

	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	chunks := e.chunkr.Chunk(parsed.Sections)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoChunks)
	}

	var metadataJSON string
	if options.metadata != nil {
		data, _ := json.Marshal(options.metadata)
		metadataJSON = string(data)
	}

	id, err := e.store.UpsertSource(ctx, store.Source{
		ID:          uuid.NewString(),
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
		PublishedAt: options.publishedAt,
		Status:      sourcePending,
		Metadata:    metadataJSON,
	})
	if err != nil {
		return nil, err
	}
	if _, err := e.store.ReplaceChunks(ctx, id, chunks); err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}

	src, err := e.store.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Info("ingest: source ready",
		"file", filename, "source_id", id, "method", parsed.Method, "chunks", len(chunks),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return &Source{Source: *src, Chunks: len(chunks)}, nil
}

// Build runs the graph pipeline for a source.
func (e *engine) Build(ctx context.Context, sourceID string) (*graph.Report, error) {
	rep, err := e.graphB.Build(ctx, sourceID)
	if err != nil {
		return rep, notFound(err, ErrSourceNotFound)
	}
	return rep, nil
}

// SeedLaws registers every registry row as a seeded law. Rows that fail
// are logged and skipped.
func (e *engine) SeedLaws(ctx context.Context, path string) (int, error) {
	entries, err := parser.ReadLawRegistry(ctx, path)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, en := range entries {
		l := registryLaw(en)
		if l.OfficialNumber == "" {
			continue
		}
		if _, err := e.store.SeedLaw(ctx, l); err != nil {
			slog.Warn("seed: skipping row", "row", en.Row, "official_number", l.OfficialNumber, "error", err)
			continue
		}
		seeded++
	}
	slog.Info("seed: registry loaded", "file", filepath.Base(path), "rows", len(entries), "seeded", seeded)
	return seeded, nil
}

// registryLaw converts a registry row into a seed record. A bare number
// ("30/2017") is rendered in canonical form with the row's type.
func registryLaw(en parser.RegistryEntry) store.Law {
	number := strings.TrimSpace(en.OfficialNumber)
	typ := law.ClassifyType(en.Type)
	if law.IsConstitution(number) || strings.EqualFold(number, "CRP") {
		number, typ = "CRP", law.TypeConstitution
	} else if n := law.ExtractNumber(number); n == number && en.Type != "" {
		number = law.CanonicalNumber(typ, en.Type, n)
	} else if en.Type == "" {
		md := law.ParseMetadata(number)
		typ = law.ClassifyType(md.Type)
	}

	var date string
	if t, ok := law.ParseDate(en.EnactmentDate); ok {
		date = law.FormatDate(t)
	}
	return store.Law{
		OfficialNumber: number,
		Slug:           law.Slug(number),
		Type:           typ,
		EnactmentDate:  date,
		OfficialTitle:  strings.TrimSpace(en.Title),
		URL:            strings.TrimSpace(en.URL),
	}
}

// GetLaw loads a law and everything attached to it.
func (e *engine) GetLaw(ctx context.Context, id int64) (*LawDetail, error) {
	l, err := e.store.GetLaw(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLawNotFound)
	}
	d := &LawDetail{Law: *l}
	if d.Articles, err = e.store.GetArticles(ctx, id); err != nil {
		return nil, err
	}
	if d.Versions, err = e.store.GetVersions(ctx, id); err != nil {
		return nil, err
	}
	if d.TagList, err = e.store.LawTags(ctx, id); err != nil {
		return nil, err
	}
	if d.Outgoing, err = e.store.OutgoingRelationships(ctx, id); err != nil {
		return nil, err
	}
	if d.Incoming, err = e.store.IncomingRelationships(ctx, id); err != nil {
		return nil, err
	}
	if d.ArticleReferences, err = e.store.ArticleReferencesFrom(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (e *engine) ListLaws(ctx context.Context) ([]store.Law, error) {
	return e.store.ListLaws(ctx)
}

func (e *engine) ListSources(ctx context.Context) ([]store.Source, error) {
	return e.store.ListSources(ctx)
}

func (e *engine) Related(ctx context.Context, lawID int64, depth int) (*graph.Neighborhood, error) {
	n, err := graph.Traverse(ctx, e.store, lawID, depth)
	if err != nil {
		return nil, notFound(err, ErrLawNotFound)
	}
	return n, nil
}

func (e *engine) SearchArticles(ctx context.Context, query string, limit int) ([]store.ArticleHit, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.store.SearchArticles(ctx, query, limit)
}

func (e *engine) SimilarArticles(ctx context.Context, text string, k int) ([]store.ArticleHit, error) {
	if e.embedLLM == nil {
		return nil, ErrEmbeddingUnavailable
	}
	if k <= 0 {
		k = 10
	}
	vecs, err := e.embedLLM.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errors.New("embedding query: empty vector")
	}
	return e.store.SimilarArticles(ctx, vecs[0], k)
}

func (e *engine) DeleteLaw(ctx context.Context, id int64) error {
	return notFound(e.store.DeleteLaw(ctx, id), ErrLawNotFound)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
