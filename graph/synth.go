package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/legalgraph/law"
	"github.com/brunobiangulo/legalgraph/llm"
)

// DefaultMaxReduceDepth bounds Reduce recursion.
const DefaultMaxReduceDepth = 6

var (
	errReduceTooDeep  = errors.New("graph: reduce recursion limit reached")
	errReduceNoShrink = errors.New("graph: reduce level did not shrink its input")
	errNothingToSum   = errors.New("graph: no summaries to synthesise")
)

// Synthesizer runs the Reduce stage over validated article summaries.
type Synthesizer struct {
	inv      *llm.Invoker
	estimate Estimator
	budget   int
	maxDepth int
}

// NewSynthesizer creates a synthesizer working under budget tokens.
func NewSynthesizer(inv *llm.Invoker, est Estimator, budget, maxDepth int) *Synthesizer {
	if est == nil {
		est = EstimateTokens
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxReduceDepth
	}
	return &Synthesizer{inv: inv, estimate: est, budget: budget, maxDepth: maxDepth}
}

// SummaryLine renders one Reduce input line.
func SummaryLine(article, summary string) string {
	return article + ": " + normalizeSpace(summary)
}

// Synthesize produces the law-level title, summary and category. When the
// lines do not fit the budget they are pre-summarised batch by batch, as
// many levels as needed; only the final call's answer is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, title string, lines []string) (*LawSynthesis, error) {
	if len(lines) == 0 {
		return nil, errNothingToSum
	}
	return s.reduce(ctx, title, lines, 0)
}

func (s *Synthesizer) reduce(ctx context.Context, title string, lines []string, depth int) (*LawSynthesis, error) {
	joined := strings.Join(lines, "\n")
	total := s.estimate(joined)
	if total < s.budget {
		var out LawSynthesis
		prompt := fmt.Sprintf(synthesisPrompt, title, strings.Join(law.Categories, ", "), joined)
		if err := s.inv.Invoke(ctx, prompt, synthesisSchema, &out); err != nil {
			return nil, fmt.Errorf("reduce call: %w", err)
		}
		out.SuggestedCategory = law.NormalizeCategory(out.SuggestedCategory)
		return &out, nil
	}

	if depth >= s.maxDepth {
		return nil, fmt.Errorf("%w (depth %d, %d tokens)", errReduceTooDeep, depth, total)
	}

	batches, err := PlanBatches(lines, s.budget, func(l string) int { return s.estimate(l + "\n") })
	if err != nil {
		return nil, fmt.Errorf("planning reduce level %d: %w", depth, err)
	}

	next := make([]string, 0, len(batches))
	for i, batch := range batches {
		var ps preSummary
		prompt := fmt.Sprintf(preSummaryPrompt, title, strings.Join(batch, "\n"))
		if err := s.inv.Invoke(ctx, prompt, preSummarySchema, &ps); err != nil {
			return nil, fmt.Errorf("pre-summary %d at level %d: %w", i+1, depth, err)
		}
		next = append(next, SummaryLine(fmt.Sprintf("Lote %d", i+1), ps.Summary))
	}

	if s.estimate(strings.Join(next, "\n")) >= total {
		return nil, fmt.Errorf("%w (level %d)", errReduceNoShrink, depth)
	}
	slog.Info("graph: reduce level condensed", "level", depth, "lines", len(lines), "batches", len(batches))
	return s.reduce(ctx, title, next, depth+1)
}
