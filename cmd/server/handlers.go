package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brunobiangulo/legalgraph"
	"github.com/brunobiangulo/legalgraph/graph"
)

type handler struct {
	engine    legalgraph.Engine
	uploadDir string
}

func newHandler(e legalgraph.Engine, uploadDir string) *handler {
	return &handler{engine: e, uploadDir: uploadDir}
}

// errorStatus maps engine errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, legalgraph.ErrSourceNotFound), errors.Is(err, legalgraph.ErrLawNotFound):
		return http.StatusNotFound
	case errors.Is(err, legalgraph.ErrSourceBusy):
		return http.StatusConflict
	case errors.Is(err, legalgraph.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, legalgraph.ErrNoChunks), errors.Is(err, legalgraph.ErrParsingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, legalgraph.ErrEmbeddingUnavailable):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// POST /sources
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var opts []legalgraph.IngestOption

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			// Uploads keep a stable path so that re-uploading the same file
			// is recognised as the same source.
			dstPath := filepath.Join(h.uploadDir, safeName)
			dst, err := os.Create(dstPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating upload file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()

			if d := r.FormValue("published_at"); d != "" {
				opts = append(opts, legalgraph.WithPublishedAt(d))
			}
			h.ingest(ctx, w, dstPath, opts, r.FormValue("build") == "true")
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path        string            `json:"path"`
		PublishedAt string            `json:"published_at,omitempty"`
		Force       bool              `json:"force,omitempty"`
		Build       bool              `json:"build,omitempty"`
		Metadata    map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	if req.Force {
		opts = append(opts, legalgraph.WithForceReparse())
	}
	if req.PublishedAt != "" {
		opts = append(opts, legalgraph.WithPublishedAt(req.PublishedAt))
	}
	if req.Metadata != nil {
		opts = append(opts, legalgraph.WithMetadata(req.Metadata))
	}
	h.ingest(ctx, w, absPath, opts, req.Build)
}

func (h *handler) ingest(ctx context.Context, w http.ResponseWriter, path string, opts []legalgraph.IngestOption, build bool) {
	src, err := h.engine.IngestSource(ctx, path, opts...)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		slog.Error("ingest error", "path", path, "error", err)
		return
	}
	if !build {
		writeJSON(w, http.StatusOK, map[string]any{"source": src})
		return
	}

	rep, err := h.engine.Build(ctx, src.ID)
	if err != nil {
		writeJSON(w, errorStatus(err), map[string]any{"source": src, "report": rep, "error": err.Error()})
		slog.Error("build error", "source_id", src.ID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": src, "report": rep})
}

// GET /sources
func (h *handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.engine.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		slog.Error("list sources error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// POST /sources/{id}/build
// A failed run still returns its report: which stage failed, for which
// chunk and articles.
func (h *handler) handleBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Minute)
	defer cancel()

	id := r.PathValue("id")
	rep, err := h.engine.Build(ctx, id)
	if err != nil {
		slog.Error("build error", "source_id", id, "error", err)
		if rep == nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		writeJSON(w, errorStatus(err), map[string]any{"report": rep, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// POST /laws/seed
// Accepts a multipart .xlsx upload or JSON with its path.
func (h *handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	path := ""
	if err := r.ParseMultipartForm(20 << 20); err == nil {
		file, _, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			tmp, err := os.CreateTemp(h.uploadDir, "registry-*.xlsx")
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			defer os.Remove(tmp.Name())
			if _, err := io.Copy(tmp, file); err != nil {
				tmp.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				return
			}
			tmp.Close()
			path = tmp.Name()
		}
	}
	if path == "" {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
			return
		}
		path = req.Path
	}

	n, err := h.engine.SeedLaws(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		slog.Error("seed error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": n})
}

// GET /laws
func (h *handler) handleListLaws(w http.ResponseWriter, r *http.Request) {
	laws, err := h.engine.ListLaws(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list laws")
		slog.Error("list laws error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"laws": laws})
}

// GET /laws/{id}
func (h *handler) handleGetLaw(w http.ResponseWriter, r *http.Request) {
	id, ok := lawID(w, r)
	if !ok {
		return
	}
	d, err := h.engine.GetLaw(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /laws/{id}/related?depth=
func (h *handler) handleRelated(w http.ResponseWriter, r *http.Request) {
	id, ok := lawID(w, r)
	if !ok {
		return
	}
	depth := 1
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > graph.MaxTraversalDepth {
			writeError(w, http.StatusBadRequest, "depth must be between 0 and "+strconv.Itoa(graph.MaxTraversalDepth))
			return
		}
		depth = d
	}
	nb, err := h.engine.Related(r.Context(), id, depth)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// DELETE /laws/{id}
func (h *handler) handleDeleteLaw(w http.ResponseWriter, r *http.Request) {
	id, ok := lawID(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteLaw(r.Context(), id); err != nil {
		writeError(w, errorStatus(err), err.Error())
		slog.Error("delete error", "law_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /search?q=&limit=
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	hits, err := h.engine.SearchArticles(r.Context(), q, queryInt(r, "limit", 20, 100))
	if err != nil {
		writeError(w, errorStatus(err), "search failed")
		slog.Error("search error", "q", q, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// GET /similar?q=&k=
func (h *handler) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	hits, err := h.engine.SimilarArticles(r.Context(), q, queryInt(r, "k", 10, 100))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		slog.Error("similar error", "q", q, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func lawID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid law id")
		return 0, false
	}
	return id, true
}

// queryInt reads a positive integer parameter, clamped to ceiling.
func queryInt(r *http.Request, name string, def, ceiling int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return min(v, ceiling)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
