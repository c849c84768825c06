package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure. Each kind has one entry in the
// policy table.
type ErrorKind string

const (
	KindExtraction   ErrorKind = "ExtractionFailure"
	KindTooLarge     ErrorKind = "ArticleTooLarge"
	KindBatch        ErrorKind = "BatchAnalysisFailure"
	KindAnomaly      ErrorKind = "RelationshipAnomaly"
	KindDowngrade    ErrorKind = "ValidationDowngrade"
	KindStorage      ErrorKind = "StorageFailure"
	KindUnclassified ErrorKind = "Unclassified"
)

// Sentinel errors, one per kind, so callers can use errors.Is on any
// *StageError.
var (
	ErrExtractionFailure    = errors.New("graph: extraction failure")
	ErrArticleTooLarge      = errors.New("graph: article too large")
	ErrBatchAnalysisFailure = errors.New("graph: batch analysis failure")
	ErrRelationshipAnomaly  = errors.New("graph: relationship anomaly")
	ErrValidationDowngrade  = errors.New("graph: validation downgrade")
	ErrStorageFailure       = errors.New("graph: storage failure")

	ErrNoChunks = errors.New("graph: source has no chunks")
)

var kindSentinels = map[ErrorKind]error{
	KindExtraction: ErrExtractionFailure,
	KindTooLarge:   ErrArticleTooLarge,
	KindBatch:      ErrBatchAnalysisFailure,
	KindAnomaly:    ErrRelationshipAnomaly,
	KindDowngrade:  ErrValidationDowngrade,
	KindStorage:    ErrStorageFailure,
}

// Stage names used in reports and logs.
const (
	StageExtract  = "extract"
	StagePlan     = "plan"
	StageMap      = "map"
	StageValidate = "validate"
	StagePersist  = "persist"
	StageLink     = "link"
	StageReduce   = "reduce"
	StageTags     = "tags"
	StageFinalize = "finalize"
)

// StageError locates a failure: which stage, which chunk and which
// articles it concerns.
type StageError struct {
	Kind       ErrorKind `json:"kind"`
	Stage      string    `json:"stage"`
	ChunkIndex int       `json:"chunk_index"` // -1 when not tied to a chunk
	Articles   []string  `json:"articles,omitempty"`
	Err        error     `json:"-"`
	Message    string    `json:"message"`
}

func newStageError(kind ErrorKind, stage string, chunk int, articles []string, err error) *StageError {
	se := &StageError{Kind: kind, Stage: stage, ChunkIndex: chunk, Articles: articles, Err: err}
	if err != nil {
		se.Message = err.Error()
	}
	return se
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at stage %s", e.Kind, e.Stage)
	if e.ChunkIndex >= 0 {
		fmt.Fprintf(&b, ", chunk %d", e.ChunkIndex)
	}
	if len(e.Articles) > 0 {
		fmt.Fprintf(&b, ", articles [%s]", strings.Join(e.Articles, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *StageError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnclassified
}
