package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nikolasl00/marketplai/internal/ingestion"
)

// ImportsHandler serves the /api/imports resource (spec §6).
type ImportsHandler struct {
	deps Dependencies
	log  zerolog.Logger
}

func NewImportsHandler(deps Dependencies, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{deps: deps, log: log.With().Str("handler", "imports").Logger()}
}

func (h *ImportsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/imports", func(r chi.Router) {
		r.Post("/upload", h.HandleUpload)
		r.Get("/", h.HandleList)
		r.Get("/{id}/status", h.HandleStatus)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/stream", h.HandleStream)
	})
}

// HandleUpload accepts a multipart CSV upload, stages it to the OS temp
// directory, creates an ImportRecord, and schedules ingestion as a
// detached background task (spec §6 "POST /api/imports/upload").
func (h *ImportsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeClassified(w, fmt.Errorf("missing file field: %w", ErrBadRequest))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeClassified(w, fmt.Errorf("only .csv files are accepted: %w", ErrBadRequest))
		return
	}

	tmp, err := os.CreateTemp("", "marketplai-import-*.csv")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	tmp.Close()

	importID, err := h.deps.Imports.Create(r.Context(), header.Filename)
	if err != nil {
		os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, "failed to create import record")
		return
	}

	tmpPath := tmp.Name()
	h.deps.Executor.Run(context.Background(), func(ctx context.Context) {
		reporter := ingestion.NewProgressReporter(h.deps.Bus.Scoped(importID), importID)
		h.deps.Pipeline.Run(ctx, tmpPath, importID, reporter)
	})

	writeJSON(w, http.StatusOK, map[string]string{"import_id": importID, "status": "pending"})
}

// HandleList serves GET /api/imports?skip=&limit=.
func (h *ImportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip := parseInt64(r.URL.Query().Get("skip"), 0)
	limit := parseInt64(r.URL.Query().Get("limit"), 20)

	records, total, err := h.deps.Imports.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list imports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records, "total": total})
}

// HandleStatus serves GET /api/imports/{id}/status.
func (h *ImportsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.deps.Imports.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load import")
		return
	}
	if rec == nil {
		writeClassified(w, fmt.Errorf("import not found: %w", ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete serves DELETE /api/imports/{id}: flips status to
// deleting synchronously, then backgrounds the cascade (spec §6
// "DELETE /api/imports/{id}").
func (h *ImportsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.deps.Imports.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete import")
		return
	}
	if !existed {
		writeClassified(w, fmt.Errorf("import not found: %w", ErrNotFound))
		return
	}

	h.deps.Executor.Run(context.Background(), func(ctx context.Context) {
		if err := h.deps.Imports.CascadeDelete(ctx, id); err != nil {
			h.log.Error().Err(err).Str("import_id", id).Msg("cascade delete failed")
			return
		}
		h.deps.Cache.Invalidate()
	})

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// HandleStream bridges an import's live progress events to a websocket
// client (SPEC_FULL.md "Live ingestion progress"), additive to the
// polling status endpoint above.
func (h *ImportsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	messages, unsubscribe := h.deps.Bus.Subscribe(id, 32)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(writeCtx, conn, map[string]any{"event": msg.Event, "data": msg.Data})
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
