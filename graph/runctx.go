package graph

import (
	"log/slog"
	"time"
)

// RunContext identifies one builder run. It is built once, after the law
// record exists, and passed by value to every stage.
type RunContext struct {
	RunID          string
	SourceID       string
	LawID          int64
	OfficialNumber string
	Title          string
	EnactmentDate  time.Time // zero when unknown
	SafeBudget     int
}

// ValidFrom is the date every version created in this run takes effect.
func (rc RunContext) ValidFrom() string {
	if rc.EnactmentDate.IsZero() {
		return ""
	}
	return rc.EnactmentDate.Format(time.DateOnly)
}

// LogAttrs returns the attributes attached to every log line of the run.
func (rc RunContext) LogAttrs() []any {
	return []any{
		slog.String("run_id", rc.RunID),
		slog.String("source_id", rc.SourceID),
		slog.Int64("law_id", rc.LawID),
	}
}
