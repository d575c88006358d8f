package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/revline/internal/store"
	"github.com/hyperengineering/revline/internal/types"
)

// --- Mock Implementations for Testing ---

// mockStore implements store.Store interface for testing
type mockStore struct {
	stats       *types.StoreStats
	statsErr    error
	insertErr   error
	insertCalls int
	lastBatch   *types.TransformResult
	deals       map[string]*types.Deal
	contacts    map[string][]types.DealContact
	listResult  []types.Deal
	listErr     error
	updateErr   error
	updated     map[string]types.DealInsights
}

func newMockStore() *mockStore {
	return &mockStore{
		stats:    &types.StoreStats{},
		deals:    make(map[string]*types.Deal),
		contacts: make(map[string][]types.DealContact),
		updated:  make(map[string]types.DealInsights),
	}
}

func (m *mockStore) InsertDealBatch(ctx context.Context, batch *types.TransformResult) error {
	m.insertCalls++
	m.lastBatch = batch
	return m.insertErr
}

func (m *mockStore) ListDeals(ctx context.Context, accountID string) ([]types.Deal, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listResult != nil {
		return m.listResult, nil
	}
	return []types.Deal{}, nil
}

func (m *mockStore) GetDeal(ctx context.Context, id string) (*types.Deal, error) {
	if deal, ok := m.deals[id]; ok {
		return deal, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetDealContacts(ctx context.Context, dealID string) ([]types.DealContact, error) {
	if contacts, ok := m.contacts[dealID]; ok {
		return contacts, nil
	}
	return []types.DealContact{}, nil
}

func (m *mockStore) UpdateDealInsights(ctx context.Context, id string, insights types.DealInsights) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated[id] = insights
	return nil
}

func (m *mockStore) GetDealsMissingInsights(ctx context.Context, limit int) ([]types.Deal, error) {
	return nil, nil
}

func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return m.stats, m.statsErr
}

func (m *mockStore) Close() error {
	return nil
}

// mockGenerator implements the insight.Generator interface for testing
type mockGenerator struct {
	model    string
	insights *types.DealInsights
	err      error
}

func (m *mockGenerator) Generate(ctx context.Context, deal types.Deal) (*types.DealInsights, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.insights != nil {
		return m.insights, nil
	}
	return &types.DealInsights{MomentumTrend: types.TrendSteady}, nil
}

func (m *mockGenerator) ModelName() string {
	return m.model
}

func newTestHandler(s store.Store, g *mockGenerator) *Handler {
	return &Handler{
		store:     s,
		generator: g,
		apiKey:    "test-key",
		version:   "1.0.0",
	}
}

const validAccountID = "7b4e9a6e-1d2c-4c3e-8d9f-5a6b7c8d9e0f"

// --- Health Endpoint Tests ---

func TestHealth_ReturnsHealthyStatus(t *testing.T) {
	ms := newMockStore()
	ms.stats = &types.StoreStats{DealCount: 3}
	handler := newTestHandler(ms, &mockGenerator{model: "gpt-4o-mini"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.InsightModel != "gpt-4o-mini" {
		t.Errorf("insight_model = %q", resp.InsightModel)
	}
	if resp.DealCount != 3 {
		t.Errorf("deal_count = %d, want 3", resp.DealCount)
	}
}

func TestHealth_StoreError(t *testing.T) {
	ms := newMockStore()
	ms.statsErr = errors.New("db closed")
	handler := newTestHandler(ms, &mockGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- Import Endpoint Tests ---

func importRequest(t *testing.T, platform, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+platform, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serveImport(handler *Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router := NewRouter(handler)
	req.Header.Set("Authorization", "Bearer test-key")
	router.ServeHTTP(w, req)
	return w
}

func TestImportDeals_Success(t *testing.T) {
	ms := newMockStore()
	handler := newTestHandler(ms, &mockGenerator{})

	body := `{
		"account_id": "` + validAccountID + `",
		"created_by": "user-1",
		"records": [{"title": "Deal A", "value": 1500, "stage_id": 3}]
	}`
	w := serveImport(handler, importRequest(t, "pipedrive", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp types.ImportResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.BatchID == "" {
		t.Error("batch_id is empty")
	}
	if resp.Platform != "pipedrive" {
		t.Errorf("platform = %q", resp.Platform)
	}
	if resp.DealsImported != 1 {
		t.Errorf("deals_imported = %d, want 1", resp.DealsImported)
	}

	if ms.insertCalls != 1 {
		t.Errorf("insert calls = %d, want 1", ms.insertCalls)
	}
	if len(ms.lastBatch.Deals) != 1 || ms.lastBatch.Deals[0].DealTitle != "Deal A" {
		t.Errorf("unexpected batch: %+v", ms.lastBatch)
	}
}

func TestImportDeals_UnsupportedPlatform(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})

	body := `{"account_id": "` + validAccountID + `", "created_by": "u", "records": []}`
	w := serveImport(handler, importRequest(t, "dynamics", body))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var resp ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "platform" {
		t.Errorf("errors = %+v, want platform field error", resp.Errors)
	}
}

func TestImportDeals_MalformedRecords(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})

	body := `{"account_id": "` + validAccountID + `", "created_by": "u", "records": "not an array"}`
	w := serveImport(handler, importRequest(t, "pipedrive", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestImportDeals_InvalidJSON(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})

	w := serveImport(handler, importRequest(t, "pipedrive", `{not json`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestImportDeals_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing account_id", `{"created_by": "u", "records": []}`, "account_id"},
		{"invalid account_id", `{"account_id": "not-a-uuid", "created_by": "u", "records": []}`, "account_id"},
		{"missing created_by", `{"account_id": "` + validAccountID + `", "records": []}`, "created_by"},
		{"missing records", `{"account_id": "` + validAccountID + `", "created_by": "u"}`, "records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(newMockStore(), &mockGenerator{})
			w := serveImport(handler, importRequest(t, "pipedrive", tt.body))

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
			}

			var resp ProblemWithErrors
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			found := false
			for _, e := range resp.Errors {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %+v, want error for field %q", resp.Errors, tt.wantField)
			}
		})
	}
}

func TestImportDeals_StoreIntegrityError(t *testing.T) {
	ms := newMockStore()
	ms.insertErr = store.ErrInvalidStage
	handler := newTestHandler(ms, &mockGenerator{})

	body := `{"account_id": "` + validAccountID + `", "created_by": "u", "records": [{}]}`
	w := serveImport(handler, importRequest(t, "pipedrive", body))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// --- Auth Tests ---

func TestAuth_MissingToken(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals?account_id="+validAccountID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
}

func TestAuth_WrongToken(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals?account_id="+validAccountID, nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_HealthIsPublic(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- Deal Endpoint Tests ---

func TestListDeals_RequiresAccountID(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestListDeals_ReturnsDeals(t *testing.T) {
	ms := newMockStore()
	ms.listResult = []types.Deal{{ID: "d1", AccountID: validAccountID, Stage: types.StageDemo}}
	handler := newTestHandler(ms, &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals?account_id="+validAccountID, nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string][]types.Deal
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp["deals"]) != 1 || resp["deals"][0].ID != "d1" {
		t.Errorf("deals = %+v", resp["deals"])
	}
}

func TestGetDeal_SetsStageName(t *testing.T) {
	ms := newMockStore()
	ms.deals["d1"] = &types.Deal{ID: "d1", Stage: types.StageNegotiation}
	handler := newTestHandler(ms, &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/d1", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var deal types.Deal
	if err := json.Unmarshal(w.Body.Bytes(), &deal); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if deal.StageName != "Negotiation" {
		t.Errorf("stage_name = %q, want Negotiation", deal.StageName)
	}
}

func TestGetDeal_NotFound(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/missing", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetDealContacts_NotFoundDeal(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/missing/contacts", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetDealContacts_ReturnsContacts(t *testing.T) {
	ms := newMockStore()
	ms.deals["d1"] = &types.Deal{ID: "d1", Stage: types.StageDemo}
	ms.contacts["d1"] = []types.DealContact{{ID: "c1", DealID: "d1", Name: "Jane"}}
	handler := newTestHandler(ms, &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/d1/contacts", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string][]types.DealContact
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp["contacts"]) != 1 || resp["contacts"][0].Name != "Jane" {
		t.Errorf("contacts = %+v", resp["contacts"])
	}
}

// --- Insight Endpoint Tests ---

func TestGenerateInsights_Success(t *testing.T) {
	ms := newMockStore()
	ms.deals["d1"] = &types.Deal{ID: "d1", Stage: types.StageDemo}
	gen := &mockGenerator{insights: &types.DealInsights{
		Summary:       "Looks promising.",
		Momentum:      30,
		MomentumTrend: types.TrendUp,
	}}
	handler := newTestHandler(ms, gen)
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/d1/insights", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if _, ok := ms.updated["d1"]; !ok {
		t.Error("insights were not persisted")
	}

	var resp types.DealInsights
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Summary != "Looks promising." {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestGenerateInsights_GeneratorUnavailable(t *testing.T) {
	ms := newMockStore()
	ms.deals["d1"] = &types.Deal{ID: "d1", Stage: types.StageDemo}
	gen := &mockGenerator{err: errors.New("api timeout")}
	handler := newTestHandler(ms, gen)
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/d1/insights", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestGenerateInsights_DealNotFound(t *testing.T) {
	handler := newTestHandler(newMockStore(), &mockGenerator{})
	router := NewRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/missing/insights", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
