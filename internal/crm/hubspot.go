package crm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hyperengineering/revline/internal/types"
)

type hubspotContact struct {
	ID        flexString `json:"id"`
	Company   flexString `json:"company"`
	FirstName flexString `json:"first_name"`
	LastName  flexString `json:"last_name"`
	Email     flexString `json:"email"`
	Phone     flexString `json:"phone"`
}

func (c *hubspotContact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type alias hubspotContact
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*c = hubspotContact(a)
	return nil
}

func (c *hubspotContact) fullName() string {
	return trimmed(trimmed(string(c.FirstName)) + " " + trimmed(string(c.LastName)))
}

type hubspotDeal struct {
	Name      flexString      `json:"name"`
	Value     flexFloat       `json:"value"`
	Stage     flexString      `json:"stage"`
	CloseDate flexString      `json:"closeDate"`
	Contacts  *hubspotContact `json:"contacts"`
	CreatedAt flexString      `json:"created_at"`
	UpdatedAt flexString      `json:"updated_at"`
}

// transformHubSpot deduplicates contacts across deals sharing the same
// external contact ID. The dedup map lives for exactly one call: the first
// occurrence of an external ID emits a DealContact row; later occurrences
// reuse the generated ID but emit no additional row. Whether later deals
// should still get their own row is an open product question; current
// behavior is preserved and the reuse is logged.
func transformHubSpot(records []json.RawMessage, accountID, createdBy string, now time.Time) *types.TransformResult {
	result := newResult()
	seenContacts := make(map[string]string) // external contact ID -> generated UUID

	for _, raw := range records {
		var hs hubspotDeal
		if err := json.Unmarshal(raw, &hs); err != nil {
			slog.Debug("hubspot record decode failed, applying defaults", "error", err)
			hs = hubspotDeal{}
		}

		companyName := unknownName
		contactName := ""
		contactEmail := ""
		if hs.Contacts != nil {
			companyName = stringOr(string(hs.Contacts.Company), unknownName)
			contactName = hs.Contacts.fullName()
			contactEmail = trimmed(string(hs.Contacts.Email))
		}

		deal := baseDeal(accountID, createdBy, string(PlatformHubSpot), now)
		deal.CompanyName = companyName
		deal.DealTitle = trimmed(string(hs.Name))
		deal.ValueAmount = nonNegative(float64(hs.Value))
		deal.Stage = MapStage(PlatformHubSpot, string(hs.Stage))
		deal.StageName = GetStageDisplayName(deal.Stage)
		deal.CloseDate = trimmed(string(hs.CloseDate))
		deal.PrimaryContact = stringOr(contactName, unknownName)
		deal.PrimaryEmail = contactEmail
		deal.CreatedAt = parseTimeOr(string(hs.CreatedAt), now)
		deal.UpdatedAt = parseTimeOr(string(hs.UpdatedAt), now)

		result.Deals = append(result.Deals, deal)

		if hs.Contacts == nil {
			continue
		}

		externalID := trimmed(string(hs.Contacts.ID))
		if externalID != "" {
			if existingID, seen := seenContacts[externalID]; seen {
				slog.Debug("hubspot contact already imported in batch",
					"external_id", externalID,
					"contact_id", existingID,
					"deal_id", deal.ID,
				)
				continue
			}
		}

		contact := types.DealContact{
			ID:              uuid.NewString(),
			DealID:          deal.ID,
			Name:            stringOr(contactName, unknownContact),
			Email:           stringOr(contactEmail, sentinelEmail),
			Phone:           trimmed(string(hs.Contacts.Phone)),
			IsPrimary:       true,
			IsDecisionMaker: false,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if externalID != "" {
			seenContacts[externalID] = contact.ID
		}
		result.DealContacts = append(result.DealContacts, contact)
	}

	return result
}
