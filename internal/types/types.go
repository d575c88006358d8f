package types

import (
	"encoding/json"
	"time"
)

// Stage is the canonical pipeline stage. The set is closed: every deal in
// the system carries exactly one of these seven values, enforced again by a
// CHECK constraint at the database layer.
type Stage string

const (
	StageInterested  Stage = "interested"
	StageContacted   Stage = "contacted"
	StageDemo        Stage = "demo"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// AllStages lists the canonical stages in pipeline order.
var AllStages = []Stage{
	StageInterested,
	StageContacted,
	StageDemo,
	StageProposal,
	StageNegotiation,
	StageWon,
	StageLost,
}

// Valid reports whether s is one of the canonical stages.
func (s Stage) Valid() bool {
	for _, st := range AllStages {
		if s == st {
			return true
		}
	}
	return false
}

// MomentumTrend describes the direction of a deal's momentum score.
type MomentumTrend string

const (
	TrendUp     MomentumTrend = "up"
	TrendSteady MomentumTrend = "steady"
	TrendDown   MomentumTrend = "down"
)

// Deal is the canonical representation of one sales opportunity, regardless
// of which source platform it was imported from.
type Deal struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
	CompanySize string `json:"company_size,omitempty"`
	Website     string `json:"website,omitempty"`
	DealTitle   string `json:"deal_title,omitempty"`

	ValueAmount   float64 `json:"value_amount"`
	ValueCurrency string  `json:"value_currency"`
	Stage         Stage   `json:"stage"`
	// StageName is the display label for Stage. UI-only; never persisted.
	StageName   string  `json:"stage_name,omitempty"`
	Probability float64 `json:"probability,omitempty"`
	CloseDate   string  `json:"close_date,omitempty"`

	Source         string `json:"source"`
	PrimaryContact string `json:"primary_contact"`
	PrimaryEmail   string `json:"primary_email"`

	Summary       string        `json:"summary,omitempty"`
	PainPoints    []string      `json:"pain_points"`
	NextSteps     []string      `json:"next_steps"`
	Blockers      []string      `json:"blockers"`
	Opportunities []string      `json:"opportunities"`
	Tags          []string      `json:"tags"`
	Momentum      float64       `json:"momentum"`
	MomentumTrend MomentumTrend `json:"momentum_trend"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
}

// DealContact is one person associated with a Deal.
type DealContact struct {
	ID              string    `json:"id"`
	DealID          string    `json:"deal_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Role            string    `json:"role,omitempty"`
	IsPrimary       bool      `json:"is_primary"`
	IsDecisionMaker bool      `json:"is_decision_maker"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TransformResult is the output of one transform call: two parallel arrays
// where every DealContact.DealID references a Deal in the same result.
type TransformResult struct {
	Deals        []Deal        `json:"deals"`
	DealContacts []DealContact `json:"deal_contacts"`
}

// DealInsights holds the AI-generated narrative fields for one deal.
type DealInsights struct {
	Summary       string        `json:"summary"`
	PainPoints    []string      `json:"pain_points"`
	NextSteps     []string      `json:"next_steps"`
	Blockers      []string      `json:"blockers"`
	Opportunities []string      `json:"opportunities"`
	Momentum      float64       `json:"momentum"`
	MomentumTrend MomentumTrend `json:"momentum_trend"`
}

// ImportRequest is the body of an import call: raw platform records plus
// the caller-supplied ownership context threaded through unchanged.
type ImportRequest struct {
	AccountID string          `json:"account_id"`
	CreatedBy string          `json:"created_by"`
	Records   json.RawMessage `json:"records"`
}

// ImportResult summarizes one completed import batch.
type ImportResult struct {
	BatchID          string `json:"batch_id"`
	Platform         string `json:"platform"`
	DealsImported    int    `json:"deals_imported"`
	ContactsImported int    `json:"contacts_imported"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	DealCount       int64 `json:"deal_count"`
	ContactCount    int64 `json:"contact_count"`
	PendingInsights int64 `json:"pending_insights"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	InsightModel string `json:"insight_model"`
	DealCount    int64  `json:"deal_count"`
}

// MarshalJSON ensures nil slices in Deal marshal as [] not null.
func (d Deal) MarshalJSON() ([]byte, error) {
	if d.PainPoints == nil {
		d.PainPoints = []string{}
	}
	if d.NextSteps == nil {
		d.NextSteps = []string{}
	}
	if d.Blockers == nil {
		d.Blockers = []string{}
	}
	if d.Opportunities == nil {
		d.Opportunities = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	type Alias Deal
	return json.Marshal(Alias(d))
}

// MarshalJSON ensures nil slices in TransformResult marshal as [] not null.
func (t TransformResult) MarshalJSON() ([]byte, error) {
	if t.Deals == nil {
		t.Deals = []Deal{}
	}
	if t.DealContacts == nil {
		t.DealContacts = []DealContact{}
	}
	type Alias TransformResult
	return json.Marshal(Alias(t))
}
