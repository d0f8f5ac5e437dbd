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
	"time"

	lexlink "github.com/ameetan/go-lexlink"
	"github.com/ameetan/go-lexlink/store"
	"github.com/ameetan/go-lexlink/validation"
)

type handler struct {
	engine lexlink.Engine
}

func newHandler(e lexlink.Engine) *handler {
	return &handler{engine: e}
}

// POST /retrieve
func (h *handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Minute)
	defer cancel()

	var req struct {
		Query           string  `json:"query"`
		TopK            int     `json:"top_k,omitempty"`
		NoLinks         bool    `json:"no_links,omitempty"`
		MaxInterpretive int     `json:"max_interpretive,omitempty"`
		WeightLexical   float64 `json:"weight_lexical,omitempty"`
		WeightDense     float64 `json:"weight_dense,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	// Bound parameters.
	if req.TopK < 0 || req.TopK > 50 {
		req.TopK = 0 // use default
	}
	if req.MaxInterpretive < 0 || req.MaxInterpretive > 10 {
		req.MaxInterpretive = 0
	}

	var opts []lexlink.RetrieveOption
	if req.TopK > 0 {
		opts = append(opts, lexlink.WithTopK(req.TopK))
	}
	if req.NoLinks {
		opts = append(opts, lexlink.WithoutInterpretationLinks())
	}
	if req.MaxInterpretive > 0 {
		opts = append(opts, lexlink.WithMaxInterpretive(req.MaxInterpretive))
	}
	if req.WeightLexical > 0 || req.WeightDense > 0 {
		opts = append(opts, lexlink.WithWeights(req.WeightLexical, req.WeightDense))
	}

	results, trace, err := h.engine.Retrieve(ctx, req.Query, opts...)
	if err != nil {
		switch {
		case errors.Is(err, lexlink.ErrBadRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, lexlink.ErrIndexUnavailable):
			writeError(w, http.StatusServiceUnavailable, "index not built yet")
		default:
			writeError(w, http.StatusInternalServerError, "retrieval failed")
			slog.Error("retrieve error", "request_id", requestID(ctx), "query", req.Query, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"trace":   trace,
	})
}

// POST /validate
func (h *handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req validation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.engine.Validate(ctx, req)
	if err != nil {
		if errors.Is(err, lexlink.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "validation failed")
		slog.Error("validate error", "request_id", requestID(ctx), "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /validate/batch
func (h *handler) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Requests []validation.Request `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if len(req.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests is required")
		return
	}

	result, err := h.engine.ValidateBatch(ctx, req.Requests)
	if err != nil {
		if errors.Is(err, lexlink.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "batch validation failed")
		slog.Error("validate batch error", "request_id", requestID(ctx), "count", len(req.Requests), "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /ingest
// Accepts multipart file upload or JSON with file path. Both carry a
// doc_type of statute, case, or rule.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			dt := store.DocType(r.FormValue("doc_type"))
			if !dt.Valid() {
				writeError(w, http.StatusBadRequest, "doc_type must be statute, case, or rule")
				return
			}

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			rep, err := h.engine.IngestFile(ctx, tmpPath, dt)
			if err != nil {
				if errors.Is(err, lexlink.ErrParse) {
					writeError(w, http.StatusBadRequest, "could not parse document")
					return
				}
				writeError(w, http.StatusInternalServerError, "ingestion failed")
				slog.Error("ingest error", "request_id", requestID(ctx), "filename", safeName, "error", err)
				return
			}
			rep.Path = safeName

			h.finishIngest(ctx, w, rep, r.FormValue("reindex") == "true")
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path    string `json:"path"`
		DocType string `json:"doc_type"`
		Reindex bool   `json:"reindex,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	dt := store.DocType(req.DocType)
	if !dt.Valid() {
		writeError(w, http.StatusBadRequest, "doc_type must be statute, case, or rule")
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

	rep, err := h.engine.IngestFile(ctx, absPath, dt)
	if err != nil {
		if errors.Is(err, lexlink.ErrParse) {
			writeError(w, http.StatusBadRequest, "could not parse document")
			return
		}
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("ingest error", "request_id", requestID(ctx), "path", absPath, "error", err)
		return
	}

	h.finishIngest(ctx, w, rep, req.Reindex)
}

// finishIngest optionally rebuilds the indexes and writes the combined
// response.
func (h *handler) finishIngest(ctx context.Context, w http.ResponseWriter, rep *lexlink.IngestReport, reindex bool) {
	resp := map[string]interface{}{
		"ingest": rep,
	}

	if reindex && rep.Inserted > 0 {
		rix, err := h.engine.Reindex(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "reindex failed")
			slog.Error("reindex error", "request_id", requestID(ctx), "error", err)
			return
		}
		resp["reindex"] = rix
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.Documents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// GET /healthz
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
