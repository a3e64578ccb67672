package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/maltedev/catalog-sync/internal/pipeline"
	"github.com/maltedev/catalog-sync/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type StatsProvider interface {
	Stats() pipeline.Stats
}

type History interface {
	Recent(ctx context.Context, limit int) ([]models.Publication, error)
	BySKU(ctx context.Context, sku string) ([]models.Publication, error)
}

type Handlers struct {
	runner  StatsProvider
	ledger  storage.Ledger
	history History
	logger  *slog.Logger
}

// NewHandlers wires the status endpoints. history may be nil when the
// publication history is disabled.
func NewHandlers(runner StatsProvider, ledger storage.Ledger, history History, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:  runner,
		ledger:  ledger,
		history: history,
		logger:  logger.With("component", "api"),
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Running: h.runner.Stats().Running,
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runner.Stats())
}

type LedgerResponse struct {
	Count     int      `json:"count"`
	Processed []string `json:"processed"`
}

func (h *Handlers) GetLedger(w http.ResponseWriter, r *http.Request) {
	processed, err := h.ledger.Processed(r.Context())
	if err != nil {
		h.logger.Error("failed to read ledger", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	h.respondJSON(w, http.StatusOK, LedgerResponse{
		Count:     len(processed),
		Processed: processed,
	})
}

// LedgerEntryResponse carries the publication history of the SKU when the
// history is enabled.
type LedgerEntryResponse struct {
	SKU          string               `json:"sku"`
	Processed    bool                 `json:"processed"`
	Publications []models.Publication `json:"publications,omitempty"`
}

func (h *Handlers) GetLedgerEntry(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	if sku == "" {
		h.respondError(w, http.StatusBadRequest, "sku is required")
		return
	}

	done, err := h.ledger.IsProcessed(r.Context(), sku)
	if err != nil {
		h.logger.Error("failed to read ledger", "error", err, "sku", sku)
		h.respondError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	entry := LedgerEntryResponse{SKU: sku, Processed: done}
	if h.history != nil {
		entry.Publications, err = h.history.BySKU(r.Context(), sku)
		if err != nil {
			h.logger.Error("failed to read publication history", "error", err, "sku", sku)
			h.respondError(w, http.StatusInternalServerError, "failed to read publication history")
			return
		}
	}

	h.respondJSON(w, http.StatusOK, entry)
}

func (h *Handlers) ListPublications(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusServiceUnavailable, "publication history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	pubs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list publications", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list publications")
		return
	}
	if pubs == nil {
		pubs = []models.Publication{}
	}

	h.respondJSON(w, http.StatusOK, pubs)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
