package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
	"github.com/brunobiangulo/legalgraph/store"
)

// ErrSourceBusy is returned when a build for the same source is running.
var ErrSourceBusy = errors.New("graph: source is already being built")

// Extraction modes.
const (
	ExtractRules = "rules"
	ExtractModel = "model"
)

// Defaults for Config fields left at zero.
const (
	DefaultSafeBudget           = 100000
	DefaultMapConcurrency       = 4
	DefaultPreambleContextChars = 2000
	DefaultBatchTimeout         = 5 * time.Minute
)

// Source processing states.
const (
	SourceProcessing = "processing"
	SourceBuilt      = "built"
	SourcePartial    = "partial"
	SourceFailed     = "failed"
)

// Config tunes the pipeline.
type Config struct {
	SafeBudget           int
	CharsPerToken        int
	MapConcurrency       int
	PreambleContextChars int
	SimilarityThreshold  float64
	MinSummaryChars      int
	MaxReduceDepth       int
	ExtractMode          string
	BatchTimeout         time.Duration
}

// Builder turns the chunks of a source into a law, its versioned
// articles, tags and relationships.
type Builder struct {
	store      *store.Store
	extractor  Extractor
	analyst    *Analyst
	validator  *Validator
	synth      *Synthesizer
	linker     *Linker
	translator Translator
	embed      llm.Provider
	estimate   Estimator
	budget     int

	mu      sync.Mutex
	running map[string]bool
}

// NewBuilder wires the pipeline stages. chat is used for extraction,
// analysis and reduce; embed (optional) embeds article summaries; tr
// (optional) fills English text that failed validation.
func NewBuilder(s *store.Store, chat, embed llm.Provider, tr Translator, cfg Config) *Builder {
	if cfg.SafeBudget <= 0 {
		cfg.SafeBudget = DefaultSafeBudget
	}
	if cfg.MapConcurrency <= 0 {
		cfg.MapConcurrency = DefaultMapConcurrency
	}
	if cfg.PreambleContextChars <= 0 {
		cfg.PreambleContextChars = DefaultPreambleContextChars
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	est := NewEstimator(cfg.CharsPerToken)
	inv := llm.NewInvoker(chat, llm.WithTemperature(0.1))

	var ex Extractor = RuleExtractor{}
	if cfg.ExtractMode == ExtractModel {
		ex = NewModelExtractor(inv)
	}

	return &Builder{
		store:      s,
		extractor:  ex,
		analyst:    NewAnalyst(inv, cfg.MapConcurrency, cfg.PreambleContextChars, cfg.BatchTimeout),
		validator:  NewValidator(cfg.SimilarityThreshold, cfg.MinSummaryChars, tr),
		synth:      NewSynthesizer(inv, est, cfg.SafeBudget, cfg.MaxReduceDepth),
		linker:     NewLinker(s),
		translator: tr,
		embed:      embed,
		estimate:   est,
		budget:     cfg.SafeBudget,
		running:    make(map[string]bool),
	}
}

// Report summarises one run.
type Report struct {
	RunID             string        `json:"run_id"`
	SourceID          string        `json:"source_id"`
	LawID             int64         `json:"law_id"`
	OfficialNumber    string        `json:"official_number"`
	Status            string        `json:"status"`
	Chunks            int           `json:"chunks"`
	Articles          int           `json:"articles"`
	Versions          int           `json:"versions"`
	Relationships     int           `json:"relationships"`
	ArticleReferences int           `json:"article_references"`
	Transitions       int           `json:"transitions"`
	Unresolved        int           `json:"unresolved_references"`
	Anomalies         int           `json:"anomalies"`
	Tags              int           `json:"tags"`
	Downgrades        []Downgrade   `json:"downgrades,omitempty"`
	Errors            []*StageError `json:"errors,omitempty"`
	ElapsedMS         int64         `json:"elapsed_ms"`
}

func (r *Report) addStats(s LinkStats) {
	r.Relationships += s.Relationships
	r.ArticleReferences += s.ArticleReferences
	r.Transitions += s.Transitions
	r.Unresolved += s.Unresolved
	r.Anomalies += s.Anomalies
}

// partial reports whether some content was skipped.
func (r *Report) partial() bool {
	for _, e := range r.Errors {
		if e.Kind == KindExtraction || e.Kind == KindBatch {
			return true
		}
	}
	return false
}

func (b *Builder) acquire(sourceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running[sourceID] {
		return false
	}
	b.running[sourceID] = true
	return true
}

func (b *Builder) release(sourceID string) {
	b.mu.Lock()
	delete(b.running, sourceID)
	b.mu.Unlock()
}

// Build runs the pipeline for a source. Re-running replaces the content
// of the previous run. The returned report is non-nil whenever the law
// record was created, including on failure.
func (b *Builder) Build(ctx context.Context, sourceID string) (*Report, error) {
	if !b.acquire(sourceID) {
		return nil, ErrSourceBusy
	}
	defer b.release(sourceID)

	start := time.Now()
	src, err := b.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("graph.Build: loading source %s: %w", sourceID, err)
	}
	chunks, err := b.store.GetChunks(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("graph.Build: loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	rc, err := b.prepareLaw(ctx, src, chunks)
	if err != nil {
		return nil, fmt.Errorf("graph.Build: %w", err)
	}

	rep := &Report{
		RunID:          rc.RunID,
		SourceID:       rc.SourceID,
		LawID:          rc.LawID,
		OfficialNumber: rc.OfficialNumber,
		Chunks:         len(chunks),
	}
	slog.Info("graph: build started", append(rc.LogAttrs(),
		"official_number", rc.OfficialNumber, "chunks", len(chunks),
		"enactment_date", rc.ValidFrom())...)

	b.setSourceStatus(ctx, rc, SourceProcessing)
	runErr := b.run(ctx, rc, chunks, rep)
	rep.ElapsedMS = time.Since(start).Milliseconds()

	// Status bookkeeping must survive a cancelled run.
	bg := context.WithoutCancel(ctx)
	if runErr != nil {
		rep.Status = law.LawFailed
		if err := b.store.UpdateLawStatus(bg, rc.LawID, law.LawFailed); err != nil {
			slog.Error("graph: recording failed status", "error", err)
		}
		b.setSourceStatus(bg, rc, SourceFailed)
		slog.Error("graph: build failed", append(rc.LogAttrs(), "error", runErr,
			"elapsed", time.Since(start).Round(time.Millisecond))...)
		return rep, runErr
	}

	srcStatus := SourceBuilt
	if rep.Status == law.LawPartial {
		srcStatus = SourcePartial
	}
	b.setSourceStatus(bg, rc, srcStatus)
	slog.Info("graph: build finished", append(rc.LogAttrs(),
		"status", rep.Status, "articles", rep.Articles, "relationships", rep.Relationships,
		"transitions", rep.Transitions, "downgrades", len(rep.Downgrades), "errors", len(rep.Errors),
		"elapsed", time.Since(start).Round(time.Millisecond))...)
	return rep, nil
}

// setSourceStatus records a source state. A failure is logged and does
// not change the outcome of the run.
func (b *Builder) setSourceStatus(ctx context.Context, rc RunContext, status string) {
	if err := b.store.UpdateSourceStatus(ctx, rc.SourceID, status); err != nil {
		slog.Error("graph: recording source status", append(rc.LogAttrs(), "status", status, "error", err)...)
	}
}

// prepareLaw reads law metadata off the first chunk, upserts the law and
// clears the content of any previous run.
func (b *Builder) prepareLaw(ctx context.Context, src *store.Source, chunks []store.Chunk) (RunContext, error) {
	md := law.ParseMetadata(chunks[0].Content)
	enacted := md.EnactmentDate
	if enacted.IsZero() {
		if t, ok := law.ParseDate(src.PublishedAt); ok {
			enacted = t
		}
	}
	title := md.Title
	if title == "" {
		title = src.Filename
	}
	number := law.OfficialNumber(title, md, src.ID)
	typ := law.ClassifyType(md.Type)
	if number == "CRP" {
		typ = law.TypeConstitution
	}

	prev, err := b.store.GetLawBySource(ctx, src.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return RunContext{}, err
	}

	runID := uuid.NewString()
	lawID, err := b.store.UpsertLaw(ctx, store.Law{
		OfficialNumber: number,
		Slug:           law.Slug(number),
		Type:           typ,
		Category:       law.DefaultCategory,
		EnactmentDate:  law.FormatDate(enacted),
		OfficialTitle:  title,
		SourceID:       src.ID,
		Status:         law.LawProcessing,
		LastRunID:      runID,
	})
	if err != nil {
		return RunContext{}, err
	}

	if prev != nil && prev.ID != lawID {
		slog.Warn("graph: source now yields a different law, removing the old one",
			"source_id", src.ID, "old", prev.OfficialNumber, "new", number)
		if err := b.store.DeleteLaw(ctx, prev.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return RunContext{}, err
		}
	}
	if err := b.store.DeleteLawContent(ctx, lawID); err != nil {
		return RunContext{}, err
	}

	stored, err := b.store.GetLaw(ctx, lawID)
	if err != nil {
		return RunContext{}, err
	}
	if t, ok := law.ParseDate(stored.EnactmentDate); ok {
		enacted = t
	}

	return RunContext{
		RunID:          runID,
		SourceID:       src.ID,
		LawID:          lawID,
		OfficialNumber: number,
		Title:          title,
		EnactmentDate:  enacted,
		SafeBudget:     b.budget,
	}, nil
}

// internalLink is an internal reference waiting for every article of the
// law to be stored.
type internalLink struct {
	src  LinkSource
	refs []CrossReference
}

func (b *Builder) run(ctx context.Context, rc RunContext, chunks []store.Chunk, rep *Report) error {
	// Extract.
	units := make([]ChunkUnit, 0, len(chunks))
	for _, c := range chunks {
		var u ExtractedUnit
		err := withRetries(ctx, KindExtraction, "extract", func(int) error {
			var err error
			u, err = b.extractor.Extract(ctx, c.Content)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			se := newStageError(KindExtraction, StageExtract, c.Index, nil, err)
			slog.Warn("graph: chunk extraction failed", append(rc.LogAttrs(), "chunk", c.Index, "error", err)...)
			rep.Errors = append(rep.Errors, se)
			continue
		}
		units = append(units, ChunkUnit{Index: c.Index, Unit: u})
	}
	doc := Assemble(units)
	lc := LawContext{Title: rc.Title, Preamble: doc.Preamble}

	// Plan.
	batches, err := PlanBatches(doc.Articles, rc.SafeBudget, articleCost(b.estimate))
	if err != nil {
		var tl *TooLargeError
		if errors.As(err, &tl) {
			a := doc.Articles[tl.Index]
			se := newStageError(KindTooLarge, StagePlan, a.Chunk, []string{a.Number}, err)
			rep.Errors = append(rep.Errors, se)
			return se
		}
		return err
	}

	// Preamble.
	var lawTr law.Bilingual
	var mentions []store.TagMention
	var lawTagSets []law.TagSet
	var preambleRefs []CrossReference
	if doc.Preamble != "" {
		preamble := FitBudget(doc.Preamble, rc.SafeBudget, func(text string) int {
			return articleCost(b.estimate)(ArticleText{Number: PreambleNumber, Text: text})
		})
		if preamble != doc.Preamble {
			slog.Warn("graph: preamble cut to the safe budget", append(rc.LogAttrs(),
				"runes", utf8.RuneCountInString(doc.Preamble), "kept", utf8.RuneCountInString(preamble))...)
		}
		an, err := b.analyst.AnalyzePreamble(ctx, lc, preamble)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			se := newStageError(KindBatch, StageMap, -1, []string{PreambleNumber}, err)
			rep.Errors = append(rep.Errors, se)
			slog.Warn("graph: preamble analysis failed", append(rc.LogAttrs(), "error", err)...)
		default:
			lawTr = an.Translations
			rep.Downgrades = append(rep.Downgrades, b.validator.Apply(ctx, PreambleNumber, doc.Preamble, &lawTr)...)
			lawTagSets = append(lawTagSets, an.Tags)
			mentions = append(mentions, tagMentions(0, an.Tags)...)
			preambleRefs = an.CrossReferences
		}
	}

	// Map.
	mapped, err := b.analyst.Map(ctx, rc, lc, batches)
	if err != nil {
		return err
	}
	rep.Errors = append(rep.Errors, mapped.Failures...)

	// Validate, persist and link, batch by batch.
	var (
		lines    []string
		internal []internalLink
	)
	for _, batch := range batches {
		var (
			items    []store.NewArticle
			analyses []ArticleAnalysis
		)
		for _, it := range batch {
			an, ok := mapped.Analyses[it.Number]
			if !ok {
				continue
			}
			rep.Downgrades = append(rep.Downgrades, b.validator.Apply(ctx, it.Number, it.Text, &an.Translations)...)
			refsJSON, err := json.Marshal(an.CrossReferences)
			if err != nil {
				return err
			}
			items = append(items, store.NewArticle{
				Article: store.Article{ArticleNumber: it.Number, ArticleOrder: it.Order},
				Version: store.Version{
					OfficialText:    it.Text,
					Status:          law.StatusActive,
					ValidFrom:       rc.ValidFrom(),
					Category:        law.NormalizeCategory(an.SuggestedCategory),
					Translations:    an.Translations,
					Tags:            AggregateTags(an.Tags),
					CrossReferences: string(refsJSON),
					RunID:           rc.RunID,
				},
			})
			analyses = append(analyses, an)
		}
		if len(items) == 0 {
			continue
		}

		refs, err := b.store.InsertArticles(ctx, rc.LawID, items)
		if err != nil {
			se := newStageError(KindStorage, StagePersist, batch[0].Chunk, articleNumbers(items), err)
			rep.Errors = append(rep.Errors, se)
			return se
		}
		rep.Articles += len(refs)
		rep.Versions += len(refs)
		b.embedVersions(ctx, rc, refs, analyses)

		for i, ref := range refs {
			an := analyses[i]
			articleID := ref.ArticleID
			src := LinkSource{ArticleID: &articleID, Article: ref.ArticleNumber}
			external, internalRefs := splitReferences(an.CrossReferences)

			stats, anomalies, err := b.linker.Link(ctx, rc, src, external)
			if err != nil {
				se := newStageError(KindStorage, StageLink, -1, []string{ref.ArticleNumber}, err)
				rep.Errors = append(rep.Errors, se)
				return se
			}
			rep.addStats(stats)
			rep.Errors = append(rep.Errors, anomalies...)
			if len(internalRefs) > 0 {
				internal = append(internal, internalLink{src: src, refs: internalRefs})
			}

			lawTagSets = append(lawTagSets, an.Tags)
			mentions = append(mentions, tagMentions(ref.VersionID, an.Tags)...)
			lines = append(lines, SummaryLine(ref.ArticleNumber, an.Translations.PT.Summary))
		}
	}

	// Links that need every article stored: internal references, the
	// preamble's law-level references and edges other laws hold on this one.
	for _, il := range internal {
		stats, _, err := b.linker.Link(ctx, rc, il.src, il.refs)
		if err != nil {
			return newStageError(KindStorage, StageLink, -1, []string{il.src.Article}, err)
		}
		rep.addStats(stats)
	}
	if len(preambleRefs) > 0 {
		stats, anomalies, err := b.linker.Link(ctx, rc, LinkSource{Article: PreambleNumber}, preambleRefs)
		if err != nil {
			return newStageError(KindStorage, StageLink, -1, []string{PreambleNumber}, err)
		}
		rep.addStats(stats)
		rep.Errors = append(rep.Errors, anomalies...)
	}
	inbound, err := b.linker.ReapplyInbound(ctx, rc)
	if err != nil {
		return newStageError(KindStorage, StageLink, -1, nil, err)
	}
	rep.addStats(inbound)

	// Reduce.
	category := law.DefaultCategory
	var syn *LawSynthesis
	if len(lines) > 0 {
		err := withRetries(ctx, KindBatch, "reduce", func(int) error {
			var err error
			syn, err = b.synth.Synthesize(ctx, rc.Title, lines)
			return err
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			syn = nil
			rep.Errors = append(rep.Errors, newStageError(KindBatch, StageReduce, -1, nil, err))
			slog.Warn("graph: reduce failed, keeping preamble translations", append(rc.LogAttrs(), "error", err)...)
		default:
			category = syn.SuggestedCategory
		}
	}
	lawTr = lawTranslations(rc.Title, lawTr, syn)

	// Tags.
	ptTags := AggregateTags(lawTagSets...)
	mentions = canonicalMentions(mentions, ptTags)
	n, err := b.store.PersistTags(ctx, rc.LawID, mentions)
	if err != nil {
		return newStageError(KindStorage, StageTags, -1, nil, err)
	}
	rep.Tags = n
	tags := law.LawTags{PT: ptTags, EN: englishTags(ctx, b.translator, ptTags)}

	// Finalize.
	rep.Status = law.LawProcessed
	if rep.partial() {
		rep.Status = law.LawPartial
	}
	if err := b.store.FinalizeLaw(ctx, rc.LawID, category, lawTr, tags, rep.Status); err != nil {
		return newStageError(KindStorage, StageFinalize, -1, nil, err)
	}
	return nil
}

// lawTranslations combines the preamble reading with the Reduce output:
// the preamble names the law, Reduce summarises it. Either may be missing.
func lawTranslations(title string, preamble law.Bilingual, syn *LawSynthesis) law.Bilingual {
	out := preamble
	if syn != nil {
		out.PT = mergeTranslation(preamble.PT, syn.Translations.PT)
		out.EN = mergeTranslation(preamble.EN, syn.Translations.EN)
	}
	if out.PT.IsZero() {
		out.PT = law.Translation{Title: title, Summary: law.PendingMarker}
	}
	if out.EN.IsZero() {
		out.EN = law.Pending()
	}
	return out
}

func mergeTranslation(preamble, reduced law.Translation) law.Translation {
	out := reduced
	if !isPlaceholder(preamble.Title) {
		out.Title = preamble.Title
	}
	if isPlaceholder(out.Summary) && !isPlaceholder(preamble.Summary) {
		out.Summary = preamble.Summary
	}
	return out
}

// canonicalMentions rewrites every mention to the law-level spelling so
// case and accent variants land on one tag.
func canonicalMentions(mentions []store.TagMention, canon law.TagSet) []store.TagMention {
	spelling := make(map[law.TagType]map[string]string, len(law.TagTypes))
	for _, t := range law.TagTypes {
		spelling[t] = make(map[string]string)
		for _, n := range canon.ByType(t) {
			spelling[t][tagKey(n)] = n
		}
	}
	out := make([]store.TagMention, 0, len(mentions))
	for _, m := range mentions {
		if n, ok := spelling[m.Type][tagKey(m.Name)]; ok {
			m.Name = n
		}
		out = append(out, m)
	}
	return out
}

// embedVersions stores embeddings of the PT summaries. Failures are
// logged; search simply misses those versions.
func (b *Builder) embedVersions(ctx context.Context, rc RunContext, refs []store.ArticleRef, analyses []ArticleAnalysis) {
	if b.embed == nil || len(refs) == 0 {
		return
	}
	texts := make([]string, len(refs))
	for i := range refs {
		texts[i] = analyses[i].Translations.PT.Title + "\n" + analyses[i].Translations.PT.Summary
	}
	vecs, err := b.embed.Embed(ctx, texts)
	if err != nil {
		slog.Warn("graph: embedding failed", append(rc.LogAttrs(), "error", err)...)
		return
	}
	for i, v := range vecs {
		if i >= len(refs) || len(v) == 0 {
			continue
		}
		if err := b.store.InsertEmbedding(ctx, refs[i].VersionID, v); err != nil {
			slog.Warn("graph: storing embedding failed", append(rc.LogAttrs(),
				"article", refs[i].ArticleNumber, "error", err)...)
		}
	}
}

func splitReferences(refs []CrossReference) (external, internal []CrossReference) {
	for _, r := range refs {
		if law.ClassifyRelation(r.Relationship) == law.RelInternal {
			internal = append(internal, r)
		} else {
			external = append(external, r)
		}
	}
	return external, internal
}

func articleNumbers(items []store.NewArticle) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = strings.TrimSpace(it.Article.ArticleNumber)
	}
	return out
}
