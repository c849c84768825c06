package graph

import (
	"context"
	"errors"
	"log/slog"
)

// Action is what the pipeline does once a failure has used up its retries.
type Action string

const (
	ActionSkipChunk    Action = "skip_chunk"
	ActionAbort        Action = "abort_run"
	ActionSkipArticles Action = "skip_articles"
	ActionDropEdge     Action = "drop_edge"
	ActionFallback     Action = "apply_fallback"
)

// Policy is one row of the decision table.
type Policy struct {
	Retries int    `json:"retries"`
	Action  Action `json:"action"`
	Fatal   bool   `json:"fatal"` // fails the whole run
}

// Policies is the decision table for every error kind.
var Policies = map[ErrorKind]Policy{
	KindExtraction: {Retries: 1, Action: ActionSkipChunk},
	KindTooLarge:   {Retries: 0, Action: ActionAbort, Fatal: true},
	KindBatch:      {Retries: 1, Action: ActionSkipArticles},
	KindAnomaly:    {Retries: 0, Action: ActionDropEdge},
	KindDowngrade:  {Retries: 0, Action: ActionFallback},
	KindStorage:    {Retries: 0, Action: ActionAbort, Fatal: true},
}

// PolicyFor returns the policy for kind. Unknown kinds abort.
func PolicyFor(kind ErrorKind) Policy {
	if p, ok := Policies[kind]; ok {
		return p
	}
	return Policy{Action: ActionAbort, Fatal: true}
}

// withRetries runs fn once plus the retries the kind allows. Context
// cancellation is never retried.
func withRetries(ctx context.Context, kind ErrorKind, what string, fn func(attempt int) error) error {
	p := PolicyFor(kind)
	var err error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			slog.Warn("graph: retrying", "kind", kind, "what", what, "attempt", attempt, "error", err)
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return err
}
