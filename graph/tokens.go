package graph

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultCharsPerToken is the characters-per-token ratio used when none is
// configured. Portuguese prose averages a little under four.
const DefaultCharsPerToken = 4

// Estimator approximates the model-context cost of a text.
type Estimator func(text string) int

// NewEstimator returns an estimator of runes/charsPerToken, rounded up.
func NewEstimator(charsPerToken int) Estimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return func(text string) int {
		n := utf8.RuneCountInString(text)
		return (n + charsPerToken - 1) / charsPerToken
	}
}

// EstimateTokens estimates with DefaultCharsPerToken.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + DefaultCharsPerToken - 1) / DefaultCharsPerToken
}

// TooLargeError reports the item that could not fit in any batch.
type TooLargeError struct {
	Index  int
	Cost   int
	Budget int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("item %d costs %d tokens, safe budget is %d", e.Index, e.Cost, e.Budget)
}

func (e *TooLargeError) Is(target error) bool { return target == ErrArticleTooLarge }

var errBadBudget = errors.New("graph: safe budget must be positive")

// PlanBatches partitions items greedily, left to right. An item joins the
// current batch while the running cost stays strictly below budget. The
// result preserves order and has no empty batches. An item that alone
// reaches the budget fails with a *TooLargeError.
func PlanBatches[T any](items []T, budget int, cost func(T) int) ([][]T, error) {
	if budget <= 0 {
		return nil, errBadBudget
	}
	var (
		batches [][]T
		current []T
		sum     int
	)
	for i, it := range items {
		c := cost(it)
		if c >= budget {
			return nil, &TooLargeError{Index: i, Cost: c, Budget: budget}
		}
		if len(current) > 0 && sum+c >= budget {
			batches = append(batches, current)
			current, sum = nil, 0
		}
		current = append(current, it)
		sum += c
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// FitBudget cuts text at a rune boundary so that cost stays strictly below
// budget. Text that already fits is returned unchanged; a cut text ends
// with "...".
func FitBudget(text string, budget int, cost func(string) int) string {
	if cost(text) < budget {
		return text
	}
	r := []rune(text)
	lo, hi := 0, len(r)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if cost(string(r[:mid])+"...") < budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(r[:lo]) + "..."
}
