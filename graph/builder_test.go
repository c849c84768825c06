//go:build cgo

package graph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLaw(t *testing.T, s *store.Store, typ law.Type, number, date string) int64 {
	t.Helper()
	id, err := s.SeedLaw(context.Background(), store.Law{
		OfficialNumber: number,
		Slug:           law.Slug(number),
		Type:           typ,
		EnactmentDate:  date,
	})
	if err != nil {
		t.Fatalf("seeding %s: %v", number, err)
	}
	return id
}

// addSource stores text as a single-chunk source.
func addSource(t *testing.T, s *store.Store, id, text string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpsertSource(ctx, store.Source{
		ID:          id,
		Path:        "/tmp/" + id + ".txt",
		Filename:    id + ".txt",
		Format:      "txt",
		ContentHash: id,
		Status:      "pending",
	}); err != nil {
		t.Fatalf("upserting source: %v", err)
	}
	if _, err := s.ReplaceChunks(ctx, id, []store.Chunk{{Content: text}}); err != nil {
		t.Fatalf("storing chunks: %v", err)
	}
}

func newTestBuilder(s *store.Store, f *fakeModel, cfg Config) *Builder {
	return NewBuilder(s, f, f, nil, cfg)
}

const amendingLaw = `Lei n.º 12/2020, de 5 de junho de 2020
A Assembleia da República decreta, nos termos da alínea c) do artigo 161.º da Constituição, o seguinte:

Artigo 1.º
Objeto
A presente lei altera o Decreto-Lei n.º 30/2017, relativo ao licenciamento de atividades.

Artigo 2.º
Entrada em vigor
A presente lei entra em vigor no dia seguinte ao da sua publicação.`

const targetLaw = `Decreto-Lei n.º 30/2017, de 12 de março de 2017
O Governo decreta o seguinte:

Artigo 1.º
Âmbito
O presente decreto-lei regula o licenciamento de atividades.

Artigo 2.º
Taxas
As taxas de licenciamento são fixadas por portaria.`

func versionsByNumber(t *testing.T, s *store.Store, lawID int64) map[string][]store.Version {
	t.Helper()
	vs, err := s.GetVersions(context.Background(), lawID)
	if err != nil {
		t.Fatalf("loading versions: %v", err)
	}
	out := make(map[string][]store.Version)
	for _, v := range vs {
		out[v.ArticleNumber] = append(out[v.ArticleNumber], v)
	}
	return out
}

func TestBuildLinksToSeededLaw(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	targetID := seedLaw(t, s, law.TypeDecretoLei, "Decreto-Lei n.º 30/2017", "2017-03-12")

	f := newFakeModel()
	f.refs["Artigo 1.º"] = []CrossReference{{Relationship: "amends", Type: "Decreto-Lei", Number: "30/2017"}}
	addSource(t, s, "src-1", amendingLaw)

	rep, err := newTestBuilder(s, f, Config{}).Build(ctx, "src-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rep.Status != law.LawProcessed {
		t.Errorf("status = %s, errors = %v", rep.Status, rep.Errors)
	}
	if rep.OfficialNumber != "Lei n.º 12/2020" {
		t.Errorf("official number = %q", rep.OfficialNumber)
	}
	if rep.Relationships != 1 || rep.Versions != 2 {
		t.Errorf("report = %+v", rep)
	}

	out, err := s.OutgoingRelationships(ctx, rep.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].TargetLawID != targetID || out[0].Type != law.RelAmends {
		t.Fatalf("relationships = %+v", out)
	}
	if out[0].SourceArticleID == nil {
		t.Error("edge lost its source article")
	}

	byNumber := versionsByNumber(t, s, rep.LawID)
	if len(byNumber) != 2 {
		t.Fatalf("versions = %v", byNumber)
	}
	for n, vs := range byNumber {
		if len(vs) != 1 || vs[0].ValidFrom != "2020-06-05" || vs[0].Status != law.StatusActive {
			t.Errorf("%s: %+v", n, vs)
		}
		if vs[0].RunID != rep.RunID {
			t.Errorf("%s: run id %q, want %q", n, vs[0].RunID, rep.RunID)
		}
	}

	l, err := s.GetLaw(ctx, rep.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Translations.PT.Title != "Lei de teste" {
		t.Errorf("PT title = %q, want the preamble title", l.Translations.PT.Title)
	}
	if l.Translations.PT.Summary != "Resumo da lei inteira" {
		t.Errorf("PT summary = %q", l.Translations.PT.Summary)
	}
	if l.Category != "FISCAL" || l.Status != law.LawProcessed {
		t.Errorf("law = %+v", l)
	}
	if l.EnactmentDate != "2020-06-05" {
		t.Errorf("enactment date = %q", l.EnactmentDate)
	}
	if len(l.Tags.PT.Organizations) != 1 || l.Tags.PT.Organizations[0] != "Assembleia da República" {
		t.Errorf("tags = %+v", l.Tags)
	}

	// The amended law is untouched: AMENDS without full supersession.
	target, err := s.GetLaw(ctx, targetID)
	if err != nil {
		t.Fatal(err)
	}
	if target.Status != law.LawSeeded {
		t.Errorf("target status = %s", target.Status)
	}
}

func TestBuildRerunIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLaw(t, s, law.TypeDecretoLei, "Decreto-Lei n.º 30/2017", "2017-03-12")

	f := newFakeModel()
	f.refs["Artigo 1.º"] = []CrossReference{{Relationship: "amends", Type: "Decreto-Lei", Number: "30/2017"}}
	f.refs["Artigo 2.º"] = []CrossReference{{Relationship: "references_internal", Article: "Artigo 1.º"}}
	addSource(t, s, "src-1", amendingLaw)
	b := newTestBuilder(s, f, Config{})

	first, err := b.Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	before, err := s.DBStats(ctx)
	if err != nil {
		t.Fatal(err)
	}

	second, err := b.Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	after, err := s.DBStats(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if *before != *after {
		t.Errorf("rerun changed the graph:\nbefore %+v\nafter  %+v", before, after)
	}
	if after.Laws != 2 || after.Versions != 2 || after.Relationships != 1 || after.ArticleReferences != 1 {
		t.Errorf("stats = %+v", after)
	}
	if after.Embeddings != 2 {
		t.Errorf("embeddings = %d, want 2", after.Embeddings)
	}
	if first.LawID != second.LawID {
		t.Errorf("law id changed: %d -> %d", first.LawID, second.LawID)
	}
	if first.RunID == second.RunID {
		t.Error("run id was reused")
	}

	l, err := s.GetLaw(ctx, second.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if l.LastRunID != second.RunID {
		t.Errorf("last run id = %q, want %q", l.LastRunID, second.RunID)
	}
	src, err := s.GetSource(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.Status != SourceBuilt {
		t.Errorf("source status = %q", src.Status)
	}
}

func TestBuildRevokesTargetArticle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addSource(t, s, "target", targetLaw)
	targetRep, err := newTestBuilder(s, newFakeModel(), Config{}).Build(ctx, "target")
	if err != nil {
		t.Fatal(err)
	}
	if targetRep.OfficialNumber != "Decreto-Lei n.º 30/2017" {
		t.Fatalf("target number = %q", targetRep.OfficialNumber)
	}

	f := newFakeModel()
	f.refs["Artigo 1.º"] = []CrossReference{{
		Relationship: "revokes", Type: "Decreto-Lei", Number: "30/2017", Article: "Artigo 2.º",
	}}
	addSource(t, s, "amending", amendingLaw)
	b := newTestBuilder(s, f, Config{})

	rep, err := b.Build(ctx, "amending")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Transitions != 1 || rep.ArticleReferences != 1 {
		t.Errorf("report = %+v", rep)
	}

	check := func(when string) {
		t.Helper()
		byNumber := versionsByNumber(t, s, targetRep.LawID)
		v1, v2 := byNumber["Artigo 1.º"], byNumber["Artigo 2.º"]
		if len(v1) != 1 || v1[0].Status != law.StatusActive || v1[0].ValidTo != "" {
			t.Errorf("%s: Artigo 1.º = %+v", when, v1)
		}
		if len(v2) != 1 || v2[0].Status != law.StatusRevoked || v2[0].ValidTo != "2020-06-04" {
			t.Errorf("%s: Artigo 2.º = %+v", when, v2)
		}
	}
	check("after revocation")

	// Re-running the revoking law must not transition anything again.
	rep, err = b.Build(ctx, "amending")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Transitions != 0 {
		t.Errorf("rerun transitions = %d, want 0", rep.Transitions)
	}
	check("after rerun")

	// Rebuilding the target recreates its versions; the stored edge is
	// applied again.
	targetRep, err = newTestBuilder(s, newFakeModel(), Config{}).Build(ctx, "target")
	if err != nil {
		t.Fatal(err)
	}
	if targetRep.Transitions != 1 {
		t.Errorf("target rebuild transitions = %d, want 1", targetRep.Transitions)
	}
	check("after target rebuild")

	refs, err := s.ArticleReferencesFrom(ctx, rep.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].Type != law.RelRevokes {
		t.Errorf("article references = %+v", refs)
	}
}

const portariaLaw = `Portaria n.º 30/2017, de 2 de janeiro de 2017
Manda o Governo o seguinte:

Artigo 1.º
Objeto
A presente portaria fixa as taxas de licenciamento.`

func TestBuildSelfCitationLeavesOtherLawsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addSource(t, s, "portaria", portariaLaw)
	portRep, err := newTestBuilder(s, newFakeModel(), Config{}).Build(ctx, "portaria")
	if err != nil {
		t.Fatal(err)
	}

	f := newFakeModel()
	f.refs["Artigo 2.º"] = []CrossReference{{Relationship: "revokes", Number: "Decreto-Lei 30/2017"}}
	addSource(t, s, "target", targetLaw)
	rep, err := newTestBuilder(s, f, Config{}).Build(ctx, "target")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Relationships != 0 || rep.Transitions != 0 {
		t.Errorf("report = %+v", rep)
	}
	out, err := s.OutgoingRelationships(ctx, rep.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("outgoing = %+v", out)
	}
	for number, vs := range versionsByNumber(t, s, portRep.LawID) {
		for _, v := range vs {
			if v.Status != law.StatusActive || v.ValidTo != "" {
				t.Errorf("portaria %s = %+v", number, v)
			}
		}
	}
}

func TestBuildFullRevocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addSource(t, s, "target", targetLaw)
	targetRep, err := newTestBuilder(s, newFakeModel(), Config{}).Build(ctx, "target")
	if err != nil {
		t.Fatal(err)
	}

	f := newFakeModel()
	f.refs["Artigo 1.º"] = []CrossReference{{
		Relationship: "amends", Type: "Decreto-Lei", Number: "30/2017", FullSupersession: true,
	}}
	addSource(t, s, "amending", amendingLaw)
	if _, err := newTestBuilder(s, f, Config{}).Build(ctx, "amending"); err != nil {
		t.Fatal(err)
	}

	for n, vs := range versionsByNumber(t, s, targetRep.LawID) {
		if vs[0].Status != law.StatusSuperseded || vs[0].ValidTo != "2020-06-04" {
			t.Errorf("%s = %+v", n, vs[0])
		}
	}
}

func TestBuildRejectsBackwardsAmendment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLaw(t, s, law.TypeLei, "Lei n.º 5/2021", "2021-01-10")

	f := newFakeModel()
	f.refs["Artigo 1.º"] = []CrossReference{{Relationship: "revokes", Type: "Lei", Number: "5/2021"}}
	addSource(t, s, "src-1", amendingLaw)

	rep, err := newTestBuilder(s, f, Config{}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Relationships != 0 || rep.Anomalies != 1 {
		t.Errorf("report = %+v", rep)
	}
	var found bool
	for _, e := range rep.Errors {
		if errors.Is(e, ErrRelationshipAnomaly) {
			found = true
		}
	}
	if !found {
		t.Errorf("no anomaly recorded: %v", rep.Errors)
	}
	// An anomaly drops the edge but does not make the law partial.
	if rep.Status != law.LawProcessed {
		t.Errorf("status = %s", rep.Status)
	}
}

func TestBuildPartialOnBatchFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := newFakeModel()
	f.handle = func(schema, prompt string, _ int) (string, bool, error) {
		if schema != "article_analysis" || !strings.Contains(prompt, "### Artigo 2.º") {
			return "", false, nil
		}
		return `{"articles":[` + mustJSON(newAnalysis("Artigo 1.º")) + `]}`, true, nil
	}
	addSource(t, s, "src-1", amendingLaw)

	rep, err := newTestBuilder(s, f, Config{}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != law.LawPartial || rep.Versions != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Kind != KindBatch {
		t.Fatalf("errors = %v", rep.Errors)
	}
	if got := rep.Errors[0].Articles; len(got) != 1 || got[0] != "Artigo 2.º" {
		t.Errorf("failed articles = %v", got)
	}
	src, err := s.GetSource(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if src.Status != SourcePartial {
		t.Errorf("source status = %q", src.Status)
	}
}

func TestBuildArticleTooLarge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addSource(t, s, "src-1", amendingLaw)

	rep, err := newTestBuilder(s, newFakeModel(), Config{SafeBudget: 10}).Build(ctx, "src-1")
	if !errors.Is(err, ErrArticleTooLarge) {
		t.Fatalf("err = %v, want ErrArticleTooLarge", err)
	}
	if rep == nil || rep.Status != law.LawFailed {
		t.Fatalf("report = %+v", rep)
	}

	l, err := s.GetLaw(ctx, rep.LawID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != law.LawFailed {
		t.Errorf("law status = %s", l.Status)
	}
	stats, err := s.DBStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Versions != 0 {
		t.Errorf("versions = %d, want none", stats.Versions)
	}
}

func TestBuildModelExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addSource(t, s, "src-1", amendingLaw)

	f := newFakeModel()
	rep, err := newTestBuilder(s, f, Config{ExtractMode: ExtractModel}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if f.count("extracted_unit") != 1 || rep.Articles != 2 {
		t.Errorf("extraction calls = %d, articles = %d", f.count("extracted_unit"), rep.Articles)
	}
}

func TestBuildExtractionFailureSkipsChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addSource(t, s, "src-1", amendingLaw)

	f := newFakeModel()
	f.handle = func(schema, _ string, _ int) (string, bool, error) {
		if schema == "extracted_unit" {
			return "not json", true, nil
		}
		return "", false, nil
	}
	rep, err := newTestBuilder(s, f, Config{ExtractMode: ExtractModel}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != law.LawPartial || rep.Articles != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || !errors.Is(rep.Errors[0], ErrExtractionFailure) || rep.Errors[0].ChunkIndex != 0 {
		t.Errorf("errors = %v", rep.Errors)
	}
}

func TestBuildRetriesMalformedExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addSource(t, s, "src-1", amendingLaw)

	f := newFakeModel()
	f.handle = func(schema, _ string, call int) (string, bool, error) {
		if schema == "extracted_unit" && call == 1 {
			return `{"preamble_text":"x"}`, true, nil
		}
		return "", false, nil
	}
	rep, err := newTestBuilder(s, f, Config{ExtractMode: ExtractModel}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if n := f.count("extracted_unit"); n != 2 {
		t.Errorf("extraction calls = %d, want 2", n)
	}
	if rep.Articles != 2 || len(rep.Errors) != 0 || rep.Status != law.LawProcessed {
		t.Errorf("report = %+v", rep)
	}
}

func TestBuildCutsLongPreambleToBudget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	long := strings.Repeat("Considerando a necessidade de simplificar o licenciamento. ", 200)
	addSource(t, s, "src-1", strings.Replace(targetLaw, "O Governo decreta", long+"\nO Governo decreta", 1))

	const budget = 300
	est := NewEstimator(0)
	var sent int
	f := newFakeModel()
	f.handle = func(schema, prompt string, _ int) (string, bool, error) {
		if i := strings.Index(prompt, "### "+PreambleNumber+"\n"); schema == "article_analysis" && i >= 0 {
			sent = est(prompt[i:])
		}
		return "", false, nil
	}
	rep, err := newTestBuilder(s, f, Config{SafeBudget: budget, PreambleContextChars: 100}).Build(ctx, "src-1")
	if err != nil {
		t.Fatal(err)
	}
	if sent == 0 || sent >= budget {
		t.Errorf("preamble cost sent = %d, budget %d", sent, budget)
	}
	if rep.Articles != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestSetSourceStatusLogsStoreErrors(t *testing.T) {
	s := newTestStore(t)
	b := newTestBuilder(s, newFakeModel(), Config{})
	s.Close()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	b.setSourceStatus(context.Background(), RunContext{RunID: "run-1", SourceID: "src-1"}, SourceFailed)
	out := buf.String()
	if !strings.Contains(out, "graph: recording source status") || !strings.Contains(out, "status=failed") {
		t.Errorf("log = %q", out)
	}
}

func TestBuildSourceBusy(t *testing.T) {
	s := newTestStore(t)
	addSource(t, s, "src-1", amendingLaw)
	b := newTestBuilder(s, newFakeModel(), Config{})

	if !b.acquire("src-1") {
		t.Fatal("could not take the lock")
	}
	defer b.release("src-1")
	if _, err := b.Build(context.Background(), "src-1"); !errors.Is(err, ErrSourceBusy) {
		t.Errorf("err = %v, want ErrSourceBusy", err)
	}
}

func TestBuildNoChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.UpsertSource(ctx, store.Source{ID: "empty", Path: "/tmp/empty.txt", Filename: "empty.txt", Format: "txt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestBuilder(s, newFakeModel(), Config{}).Build(ctx, "empty"); !errors.Is(err, ErrNoChunks) {
		t.Errorf("err = %v, want ErrNoChunks", err)
	}
}

func TestLinkerTemporalGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newer := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2020", "2020-01-01")
	older := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2019", "2019-01-01")
	l := NewLinker(s)

	date := func(iso string) RunContext {
		d, _ := law.ParseDate(iso)
		return RunContext{EnactmentDate: d}
	}

	rc := date("2019-01-01")
	rc.LawID = older
	stats, anomalies, err := l.Link(ctx, rc, LinkSource{Article: "Artigo 1.º"}, []CrossReference{
		{Relationship: "amends", Type: "Lei", Number: "1/2020"},
		{Relationship: "references", Type: "Lei", Number: "1/2020"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Relationships != 1 || stats.Anomalies != 1 || len(anomalies) != 1 {
		t.Errorf("older -> newer: stats = %+v, anomalies = %v", stats, anomalies)
	}
	if !errors.Is(anomalies[0], ErrRelationshipAnomaly) {
		t.Errorf("anomaly = %v", anomalies[0])
	}

	rc = date("2020-01-01")
	rc.LawID = newer
	stats, anomalies, err = l.Link(ctx, rc, LinkSource{Article: "Artigo 1.º"}, []CrossReference{
		{Relationship: "amends", Type: "Lei", Number: "1/2019"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Relationships != 1 || len(anomalies) != 0 {
		t.Errorf("newer -> older: stats = %+v, anomalies = %v", stats, anomalies)
	}

	// Same-day enactment is allowed.
	sameDay := seedLaw(t, s, law.TypeLei, "Lei n.º 2/2020", "2020-01-01")
	rc.LawID = sameDay
	stats, _, err = l.Link(ctx, rc, LinkSource{}, []CrossReference{{Relationship: "revokes", Number: "Lei n.º 1/2020"}})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Relationships != 1 {
		t.Errorf("same day: stats = %+v", stats)
	}

	// Unknown source date cannot prove the order.
	rc = RunContext{LawID: sameDay}
	stats, _, err = l.Link(ctx, rc, LinkSource{}, []CrossReference{{Relationship: "revokes", Number: "Lei n.º 1/2019"}})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Anomalies != 1 || stats.Relationships != 0 {
		t.Errorf("unknown date: stats = %+v", stats)
	}
}

func TestLinkerEdgeDeduplication(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2020", "2020-01-01")
	seedLaw(t, s, law.TypeLei, "Lei n.º 1/2019", "2019-01-01")
	l := NewLinker(s)

	d, _ := law.ParseDate("2020-01-01")
	rc := RunContext{LawID: src, EnactmentDate: d}
	ref := CrossReference{Relationship: "references", Type: "Lei", Number: "1/2019"}
	for i := 0; i < 3; i++ {
		if _, _, err := l.Link(ctx, rc, LinkSource{}, []CrossReference{ref}); err != nil {
			t.Fatal(err)
		}
	}
	out, err := s.OutgoingRelationships(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("relationships = %d, want 1", len(out))
	}
}

func TestResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dl := seedLaw(t, s, law.TypeDecretoLei, "Decreto-Lei n.º 30/2017", "2017-03-12")
	portaria := seedLaw(t, s, law.TypePortaria, "Portaria n.º 30/2017", "2017-05-02")
	seedLaw(t, s, law.TypeDecretoLei, "Decreto-Lei n.º 130/2017", "2017-09-01")
	l := NewLinker(s)

	tests := []struct {
		name string
		rc   RunContext
		ref  CrossReference
		want int64
	}{
		{"canonical", RunContext{}, CrossReference{Type: "Decreto-Lei", Number: "30/2017"}, dl},
		{"citation in number", RunContext{}, CrossReference{Number: "Decreto-Lei n.º 30/2017"}, dl},
		{"lower-case type", RunContext{}, CrossReference{Type: "decreto-lei", Number: "n.º 30/2017"}, dl},
		{"other type", RunContext{}, CrossReference{Type: "Portaria", Number: "30/2017"}, portaria},
		{"url slug", RunContext{}, CrossReference{URL: "https://dre.pt/legislacao/decreto-lei-no-302017/"}, dl},
		{"ambiguous number", RunContext{}, CrossReference{Number: "30/2017"}, 0},
		{"unknown", RunContext{}, CrossReference{Type: "Lei", Number: "99/1999"}, 0},
		{"self reference", RunContext{LawID: dl}, CrossReference{Type: "Decreto-Lei", Number: "30/2017"}, 0},
		{"self reference in number", RunContext{LawID: dl}, CrossReference{Number: "Decreto-Lei 30/2017"}, 0},
		{"self reference by url", RunContext{LawID: dl}, CrossReference{URL: "https://dre.pt/legislacao/decreto-lei-no-302017/"}, 0},
		{"untyped number shared with self", RunContext{LawID: dl}, CrossReference{Number: "30/2017"}, 0},
		{"only candidate has another type", RunContext{}, CrossReference{Type: "Lei", Number: "130/2017"}, 0},
		{"no number", RunContext{}, CrossReference{Description: "legislação aplicável"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Resolve(ctx, tt.rc, tt.ref)
			if err != nil {
				t.Fatal(err)
			}
			var id int64
			if got != nil {
				id = got.ID
			}
			if id != tt.want {
				t.Errorf("Resolve(%+v) = %d, want %d", tt.ref, id, tt.want)
			}
		})
	}
}

func TestTraverse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2020", "2020-01-01")
	b := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2019", "2019-01-01")
	c := seedLaw(t, s, law.TypeLei, "Lei n.º 1/2018", "2018-01-01")
	seedLaw(t, s, law.TypeLei, "Lei n.º 1/2017", "2017-01-01")

	for _, e := range [][2]int64{{a, b}, {b, c}} {
		if _, err := s.InsertRelationship(ctx, store.Relationship{SourceLawID: e[0], TargetLawID: e[1], Type: law.RelReferences}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := Traverse(ctx, s, a, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Laws) != 2 || len(n.Edges) != 1 {
		t.Errorf("depth 1: %d laws, %d edges", len(n.Laws), len(n.Edges))
	}

	n, err = Traverse(ctx, s, c, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n.Depth != MaxTraversalDepth || len(n.Laws) != 3 || len(n.Edges) != 2 {
		t.Errorf("full: depth %d, %d laws, %d edges", n.Depth, len(n.Laws), len(n.Edges))
	}

	if _, err := Traverse(ctx, s, 9999, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing root: err = %v", err)
	}
}
