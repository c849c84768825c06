package legalgraph

import (
	"errors"
	"fmt"

	"github.com/brunobiangulo/legalgraph/graph"
	"github.com/brunobiangulo/legalgraph/parser"
	"github.com/brunobiangulo/legalgraph/store"
)

var (
	// ErrSourceNotFound is returned when a source ID does not exist.
	ErrSourceNotFound = errors.New("legalgraph: source not found")

	// ErrLawNotFound is returned when a law ID does not exist.
	ErrLawNotFound = errors.New("legalgraph: law not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("legalgraph: parsing failed")

	// ErrNoChunks is returned when a source produced no text to build from.
	ErrNoChunks = graph.ErrNoChunks

	// ErrSourceBusy is returned when a build for the same source is running.
	ErrSourceBusy = graph.ErrSourceBusy

	// ErrEmbeddingUnavailable is returned by vector search when no
	// embedding provider is configured.
	ErrEmbeddingUnavailable = errors.New("legalgraph: no embedding provider configured")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("legalgraph: invalid configuration")
)

// notFound maps store.ErrNotFound onto the engine's sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
