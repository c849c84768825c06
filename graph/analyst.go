package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
)

// PreambleNumber is the pseudo article number under which the preamble is
// analysed.
const PreambleNumber = "PREAMBULO"

// LawContext is the law-level context given to every Map call.
type LawContext struct {
	Title    string
	Preamble string
}

// Analyst runs the Map stage: one model call per batch, with results
// correlated back to article numbers.
type Analyst struct {
	inv           *llm.Invoker
	concurrency   int
	preambleChars int
	timeout       time.Duration
}

// NewAnalyst creates an analyst. concurrency bounds parallel batches,
// preambleChars truncates the law preamble in prompts, timeout caps each
// batch (0 disables).
func NewAnalyst(inv *llm.Invoker, concurrency, preambleChars int, timeout time.Duration) *Analyst {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Analyst{inv: inv, concurrency: concurrency, preambleChars: preambleChars, timeout: timeout}
}

// MapResult collects the Map stage output.
type MapResult struct {
	Analyses map[string]ArticleAnalysis
	Failures []*StageError
}

// Map analyses every batch. Batch failures are collected, not returned;
// the only error is cancellation of ctx.
func (a *Analyst) Map(ctx context.Context, rc RunContext, lc LawContext, batches [][]ArticleText) (*MapResult, error) {
	res := &MapResult{Analyses: make(map[string]ArticleAnalysis)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	start := time.Now()
	for i, batch := range batches {
		g.Go(func() error {
			batchCtx := gctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				batchCtx, cancel = context.WithTimeout(gctx, a.timeout)
				defer cancel()
			}

			batchStart := time.Now()
			got, missing, err := a.analyzeBatch(batchCtx, lc, batch)

			mu.Lock()
			defer mu.Unlock()
			for k, v := range got {
				res.Analyses[k] = v
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				se := newStageError(KindBatch, StageMap, batch[0].Chunk, missing, err)
				slog.Warn("graph: batch analysis failed", append(rc.LogAttrs(),
					"batch", i, "articles", len(missing), "error", err)...)
				res.Failures = append(res.Failures, se)
				return nil
			}
			slog.Info("graph: batch analysed", append(rc.LogAttrs(),
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"articles", len(batch),
				"elapsed", time.Since(batchStart).Round(time.Millisecond))...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("graph: map stage done", append(rc.LogAttrs(),
		"batches", len(batches), "analysed", len(res.Analyses), "failed_batches", len(res.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond))...)
	return res, nil
}

// analyzeBatch returns the analyses it could correlate and, on failure,
// the article numbers still missing after the retry.
func (a *Analyst) analyzeBatch(ctx context.Context, lc LawContext, batch []ArticleText) (map[string]ArticleAnalysis, []string, error) {
	got := make(map[string]ArticleAnalysis, len(batch))
	pending := batch

	err := withRetries(ctx, KindBatch, "map batch", func(int) error {
		var out analysisBatch
		if err := a.inv.Invoke(ctx, a.prompt(lc, pending), analysisSchema, &out); err != nil {
			return err
		}
		correlate(pending, out.Articles, got)
		pending = missingArticles(pending, got)
		if len(pending) > 0 {
			return fmt.Errorf("%d of the batch's articles missing from model output", len(pending))
		}
		return nil
	})
	if err != nil {
		missing := make([]string, len(pending))
		for i, p := range pending {
			missing[i] = p.Number
		}
		return got, missing, err
	}
	return got, nil, nil
}

// correlate files each answer under the input article it belongs to.
// Answers are matched by exact label first, then by normalised article
// key when that key is unambiguous within the batch. Unknown labels are
// ignored.
func correlate(batch []ArticleText, answers []ArticleAnalysis, into map[string]ArticleAnalysis) {
	exact := make(map[string]bool, len(batch))
	byKey := make(map[string]string, len(batch))
	ambiguous := make(map[string]bool)
	for _, it := range batch {
		exact[it.Number] = true
		k := law.ArticleKey(it.Number)
		if _, dup := byKey[k]; dup {
			ambiguous[k] = true
		}
		byKey[k] = it.Number
	}

	for _, ans := range answers {
		label := strings.TrimSpace(ans.ArticleNumber)
		if !exact[label] {
			k := law.ArticleKey(label)
			n, ok := byKey[k]
			if !ok || ambiguous[k] {
				slog.Debug("graph: ignoring analysis for unknown article", "article", label)
				continue
			}
			label = n
		}
		ans.ArticleNumber = label
		into[label] = ans
	}
}

func missingArticles(batch []ArticleText, got map[string]ArticleAnalysis) []ArticleText {
	var out []ArticleText
	for _, it := range batch {
		if _, ok := got[it.Number]; !ok {
			out = append(out, it)
		}
	}
	return out
}

// AnalyzePreamble analyses the law preamble as a pseudo article. Its
// translations seed the law record and its references become law-level
// edges.
func (a *Analyst) AnalyzePreamble(ctx context.Context, lc LawContext, preamble string) (*ArticleAnalysis, error) {
	item := []ArticleText{{Number: PreambleNumber, Text: preamble}}
	got, _, err := a.analyzeBatch(ctx, LawContext{Title: lc.Title}, item)
	if err != nil {
		return nil, err
	}
	res := got[PreambleNumber]
	return &res, nil
}

func (a *Analyst) prompt(lc LawContext, batch []ArticleText) string {
	var b strings.Builder
	for _, it := range batch {
		fmt.Fprintf(&b, "### %s\n%s\n\n", it.Number, it.Text)
	}
	preamble := truncateRunes(lc.Preamble, a.preambleChars)
	if preamble == "" {
		preamble = "(none)"
	}
	return fmt.Sprintf(analysisPrompt, lc.Title, preamble, strings.Join(law.Categories, ", "), b.String())
}

// articleCost is the Map-stage cost of one article as it appears in the prompt.
func articleCost(est Estimator) func(ArticleText) int {
	return func(it ArticleText) int {
		return est("### " + it.Number + "\n" + it.Text + "\n\n")
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
