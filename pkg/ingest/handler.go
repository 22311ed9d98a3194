package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Handler handles reading ingestion and the small read-only endpoints
// that describe the dataset.
type Handler struct {
	store    store.Store
	registry *reading.Registry
}

// NewHandler creates a new ingest handler.
func NewHandler(st store.Store, registry *reading.Registry) *Handler {
	return &Handler{store: st, registry: registry}
}

// IngestRequest represents the request payload
type IngestRequest struct {
	Readings []reading.Reading `json:"readings"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// HandleIngest handles the /v1/ingest endpoint. The whole batch is
// validated before anything is written, so a rejected request leaves the
// store untouched.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	if len(req.Readings) == 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "no readings in request")
		return
	}
	if len(req.Readings) > config.MaxReadingsPerRequest {
		httpx.RespondError(w, http.StatusBadRequest, ErrTooManyReadings)
		return
	}
	for i, rd := range req.Readings {
		if err := h.Validate(rd); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid reading at index %d: %w", i, err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Write(ctx, req.Readings); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("write failed: %w", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(req.Readings),
	})
}

// HandleSources handles GET /v1/generation/sources, listing the
// registered source names.
func (h *Handler) HandleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.registry.Names(),
		"count":   h.registry.Len(),
	})
}

// HandleStats handles GET /v1/stats, reporting store-level statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("stats failed: %w", err))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, stats)
}

// RecentReadings returns up to limit readings from the last window, newest
// last. Used by the websocket broadcaster.
func (h *Handler) RecentReadings(ctx context.Context, window time.Duration, limit int) ([]reading.Reading, error) {
	return h.store.Query(ctx, store.RangeRequest{
		Start: time.Now().Add(-window),
		Limit: limit,
	})
}
