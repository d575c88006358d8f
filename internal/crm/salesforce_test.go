package crm

import (
	"encoding/json"
	"testing"

	"github.com/hyperengineering/revline/internal/types"
)

func TestTransformSalesforce_FullRecord(t *testing.T) {
	raw := json.RawMessage(`[{
		"name": "Infra Modernization",
		"value": 120000,
		"stage": "Negotiation/Review",
		"probability": 65,
		"closeDate": "2026-10-31",
		"contacts": {"company": "Stark Industries", "first_name": "Pepper", "last_name": "Potts", "email": "pepper@stark.com", "phone": "555-0100"},
		"createdAt": "2026-06-15T10:00:00Z",
		"updatedAt": "2026-08-10T12:30:00Z"
	}]`)

	result, err := TransformDeals(raw, "salesforce", testAccountID, testCreatedBy)
	if err != nil {
		t.Fatalf("TransformDeals error = %v", err)
	}
	if len(result.Deals) != 1 || len(result.DealContacts) != 1 {
		t.Fatalf("got %d deals, %d contacts, want 1 and 1", len(result.Deals), len(result.DealContacts))
	}

	deal := result.Deals[0]
	if deal.CompanyName != "Stark Industries" {
		t.Errorf("CompanyName = %q", deal.CompanyName)
	}
	if deal.Stage != types.StageNegotiation {
		t.Errorf("Stage = %q, want negotiation", deal.Stage)
	}
	if deal.Probability != 65 {
		t.Errorf("Probability = %v", deal.Probability)
	}
	if deal.PrimaryContact != "Pepper Potts" || deal.PrimaryEmail != "pepper@stark.com" {
		t.Errorf("PrimaryContact/Email = %q/%q", deal.PrimaryContact, deal.PrimaryEmail)
	}

	contact := result.DealContacts[0]
	if contact.DealID != deal.ID {
		t.Errorf("contact.DealID = %q, want deal ID", contact.DealID)
	}
	if contact.Phone != "555-0100" {
		t.Errorf("contact.Phone = %q", contact.Phone)
	}
}

func TestTransformSalesforce_PartialName(t *testing.T) {
	tests := []struct {
		name     string
		contacts string
		want     string
	}{
		{"first only", `{"first_name": "Cher"}`, "Cher"},
		{"last only", `{"last_name": "Madonna"}`, "Madonna"},
		{"neither", `{"email": "x@y.com"}`, unknownName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := json.RawMessage(`[{"name": "T", "contacts": ` + tt.contacts + `}]`)
			result, err := TransformDeals(raw, "salesforce", testAccountID, testCreatedBy)
			if err != nil {
				t.Fatalf("TransformDeals error = %v", err)
			}
			if got := result.Deals[0].PrimaryContact; got != tt.want {
				t.Errorf("PrimaryContact = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransformSalesforce_NoContactsObject(t *testing.T) {
	raw := json.RawMessage(`[{"name": "Bare", "stage": "Prospecting"}]`)

	result, err := TransformDeals(raw, "salesforce", testAccountID, testCreatedBy)
	if err != nil {
		t.Fatalf("TransformDeals error = %v", err)
	}
	if len(result.DealContacts) != 0 {
		t.Errorf("got %d contacts, want 0", len(result.DealContacts))
	}
	if result.Deals[0].CompanyName != unknownName {
		t.Errorf("CompanyName = %q, want %q", result.Deals[0].CompanyName, unknownName)
	}
	if result.Deals[0].Stage != types.StageInterested {
		t.Errorf("Stage = %q, want interested (Prospecting)", result.Deals[0].Stage)
	}
}

func TestTransformSalesforce_MalformedContactsShape(t *testing.T) {
	// contacts arriving as an array instead of an object decodes to nothing
	// rather than failing the record.
	raw := json.RawMessage(`[{"name": "Odd", "contacts": [{"first_name": "X"}]}]`)

	result, err := TransformDeals(raw, "salesforce", testAccountID, testCreatedBy)
	if err != nil {
		t.Fatalf("TransformDeals error = %v", err)
	}
	if len(result.Deals) != 1 {
		t.Fatalf("got %d deals, want 1", len(result.Deals))
	}
	deal := result.Deals[0]
	if deal.DealTitle != "Odd" {
		t.Errorf("DealTitle = %q", deal.DealTitle)
	}
}
