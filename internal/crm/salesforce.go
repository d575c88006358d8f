package crm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperengineering/revline/internal/types"
)

type salesforceContact struct {
	ID        flexString `json:"id"`
	Company   flexString `json:"company"`
	FirstName flexString `json:"first_name"`
	LastName  flexString `json:"last_name"`
	Email     flexString `json:"email"`
	Phone     flexString `json:"phone"`
}

func (c *salesforceContact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type alias salesforceContact
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*c = salesforceContact(a)
	return nil
}

// fullName joins first and last names, dropping whichever is absent.
func (c *salesforceContact) fullName() string {
	return trimmed(strings.TrimSpace(string(c.FirstName)) + " " + strings.TrimSpace(string(c.LastName)))
}

type salesforceDeal struct {
	Name        flexString         `json:"name"`
	Value       flexFloat          `json:"value"`
	Stage       flexString         `json:"stage"`
	Probability flexFloat          `json:"probability"`
	CloseDate   flexString         `json:"closeDate"`
	Contacts    *salesforceContact `json:"contacts"`
	CreatedAt   flexString         `json:"createdAt"`
	UpdatedAt   flexString         `json:"updatedAt"`
}

func transformSalesforce(records []json.RawMessage, accountID, createdBy string, now time.Time) *types.TransformResult {
	result := newResult()

	for _, raw := range records {
		var sf salesforceDeal
		if err := json.Unmarshal(raw, &sf); err != nil {
			slog.Debug("salesforce record decode failed, applying defaults", "error", err)
			sf = salesforceDeal{}
		}

		companyName := unknownName
		contactName := ""
		contactEmail := ""
		if sf.Contacts != nil {
			companyName = stringOr(string(sf.Contacts.Company), unknownName)
			contactName = sf.Contacts.fullName()
			contactEmail = trimmed(string(sf.Contacts.Email))
		}

		deal := baseDeal(accountID, createdBy, string(PlatformSalesforce), now)
		deal.CompanyName = companyName
		deal.DealTitle = trimmed(string(sf.Name))
		deal.ValueAmount = nonNegative(float64(sf.Value))
		deal.Stage = MapStage(PlatformSalesforce, string(sf.Stage))
		deal.StageName = GetStageDisplayName(deal.Stage)
		deal.Probability = clampProbability(float64(sf.Probability))
		deal.CloseDate = trimmed(string(sf.CloseDate))
		deal.PrimaryContact = stringOr(contactName, unknownName)
		deal.PrimaryEmail = contactEmail
		deal.CreatedAt = parseTimeOr(string(sf.CreatedAt), now)
		deal.UpdatedAt = parseTimeOr(string(sf.UpdatedAt), now)

		result.Deals = append(result.Deals, deal)

		if sf.Contacts != nil {
			contact := types.DealContact{
				ID:              uuid.NewString(),
				DealID:          deal.ID,
				Name:            stringOr(contactName, unknownContact),
				Email:           stringOr(contactEmail, sentinelEmail),
				Phone:           trimmed(string(sf.Contacts.Phone)),
				IsPrimary:       true,
				IsDecisionMaker: false,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			result.DealContacts = append(result.DealContacts, contact)
		}
	}

	return result
}
