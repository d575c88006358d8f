package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/revline/internal/crm"
	"github.com/hyperengineering/revline/internal/insight"
	"github.com/hyperengineering/revline/internal/store"
	"github.com/hyperengineering/revline/internal/types"
	"github.com/hyperengineering/revline/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store     store.Store
	generator insight.Generator
	apiKey    string
	version   string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, g insight.Generator, apiKey, version string) *Handler {
	return &Handler{
		store:     s,
		generator: g,
		apiKey:    apiKey,
		version:   version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		InsightModel: h.generator.ModelName(),
		DealCount:    stats.DealCount,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ImportDeals handles POST /api/v1/imports/{platform}.
// It normalizes the platform's raw records and persists the batch.
func (h *Handler) ImportDeals(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")

	var req types.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("account_id", req.AccountID))
	if req.AccountID != "" {
		c.Add(validation.ValidateUUID("account_id", req.AccountID))
	}
	c.Add(validation.ValidateRequired("created_by", req.CreatedBy))
	if len(req.Records) == 0 {
		c.Add(&validation.ValidationError{Field: "records", Message: "is required"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	result, err := crm.TransformDeals(req.Records, platform, req.AccountID, req.CreatedBy)
	if err != nil {
		switch {
		case errors.Is(err, crm.ErrUnsupportedPlatform):
			WriteProblemWithErrors(w, r, "Unsupported platform", []validation.ValidationError{
				{Field: "platform", Message: fmt.Sprintf("must be one of: %s", platformNames())},
			})
		case errors.Is(err, crm.ErrMalformedPayload):
			WriteProblem(w, r, http.StatusBadRequest, "Records must be a JSON array or object")
		default:
			slog.Error("transform failed", "error", err, "platform", platform)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	if err := h.store.InsertDealBatch(r.Context(), result); err != nil {
		slog.Error("batch insert failed", "error", err, "platform", platform, "account_id", req.AccountID)
		MapStoreError(w, r, err)
		return
	}

	resp := types.ImportResult{
		BatchID:          ulid.Make().String(),
		Platform:         platform,
		DealsImported:    len(result.Deals),
		ContactsImported: len(result.DealContacts),
	}

	slog.Info("import complete",
		"batch_id", resp.BatchID,
		"platform", platform,
		"deals", resp.DealsImported,
		"contacts", resp.ContactsImported,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// ListDeals handles GET /api/v1/deals?account_id=...
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if err := validation.ValidateRequired("account_id", accountID); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	deals, err := h.store.ListDeals(r.Context(), accountID)
	if err != nil {
		slog.Error("list deals failed", "error", err, "account_id", accountID)
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]types.Deal{"deals": deals})
}

// GetDeal handles GET /api/v1/deals/{id}
func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.store.GetDeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	deal.StageName = crm.GetStageDisplayName(deal.Stage)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deal)
}

// GetDealContacts handles GET /api/v1/deals/{id}/contacts
func (h *Handler) GetDealContacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetDeal(r.Context(), id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	contacts, err := h.store.GetDealContacts(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]types.DealContact{"contacts": contacts})
}

// GenerateInsights handles POST /api/v1/deals/{id}/insights.
// Generation is synchronous; the background worker covers deals the caller
// never enriches explicitly.
func (h *Handler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deal, err := h.store.GetDeal(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	insights, err := h.generator.Generate(r.Context(), *deal)
	if err != nil {
		slog.Error("insight generation failed", "error", err, "deal_id", id)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Insight generation unavailable")
		return
	}

	if err := h.store.UpdateDealInsights(r.Context(), id, *insights); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(insights)
}

func platformNames() string {
	names := ""
	for i, p := range crm.SupportedPlatforms {
		if i > 0 {
			names += ", "
		}
		names += string(p)
	}
	return names
}
