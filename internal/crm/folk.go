package crm

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperengineering/revline/internal/types"
)

type folkGroup struct {
	ID   flexString `json:"id"`
	Name flexString `json:"name"`
}

// folkPerson is a Folk person record. Folk has no first-class deal object;
// deals are synthesized from people. customFieldValues is keyed first by
// group ID, then by the tenant's custom field *labels* — not fixed schema
// keys — so every field read goes through label lookup and no-ops when the
// tenant's Folk configuration lacks that label.
type folkPerson struct {
	FullName          flexString                            `json:"fullName"`
	FirstName         flexString                            `json:"firstName"`
	LastName          flexString                            `json:"lastName"`
	JobTitle          flexString                            `json:"jobTitle"`
	Description       flexString                            `json:"description"`
	Emails            stringList                            `json:"emails"`
	Phones            stringList                            `json:"phones"`
	Companies         stringList                            `json:"companies"`
	URLs              stringList                            `json:"urls"`
	Groups            []folkGroup                           `json:"groups"`
	CustomFieldValues map[string]map[string]json.RawMessage `json:"customFieldValues"`
}

func (p *folkPerson) name() string {
	if v := trimmed(string(p.FullName)); v != "" {
		return v
	}
	return trimmed(trimmed(string(p.FirstName)) + " " + trimmed(string(p.LastName)))
}

// customField finds a custom field by label across the person's groups,
// comparing labels case-insensitively. First group carrying the label wins.
func (p *folkPerson) customField(labels ...string) (json.RawMessage, bool) {
	for _, group := range p.Groups {
		bag, ok := p.CustomFieldValues[string(group.ID)]
		if !ok {
			continue
		}
		for key, value := range bag {
			for _, label := range labels {
				if strings.EqualFold(strings.TrimSpace(key), label) {
					return value, true
				}
			}
		}
	}
	return nil, false
}

func (p *folkPerson) customString(labels ...string) string {
	raw, ok := p.customField(labels...)
	if !ok {
		return ""
	}
	var v flexString
	_ = v.UnmarshalJSON(raw)
	return trimmed(string(v))
}

func (p *folkPerson) customFloat(labels ...string) float64 {
	raw, ok := p.customField(labels...)
	if !ok {
		return 0
	}
	var v flexFloat
	_ = v.UnmarshalJSON(raw)
	return float64(v)
}

func transformFolk(records []json.RawMessage, accountID, createdBy string, now time.Time) *types.TransformResult {
	result := newResult()

	for _, raw := range records {
		var fp folkPerson
		if err := json.Unmarshal(raw, &fp); err != nil {
			slog.Debug("folk record decode failed, applying defaults", "error", err)
			fp = folkPerson{}
		}

		personName := fp.name()
		email := fp.Emails.first()

		deal := baseDeal(accountID, createdBy, string(PlatformFolk), now)
		deal.CompanyName = stringOr(fp.Companies.first(), unknownName)
		deal.DealTitle = stringOr(fp.customString("Deal name", "Deal title"), personName)
		deal.ValueAmount = nonNegative(fp.customFloat("Deal value", "Value", "Amount"))
		deal.ValueCurrency = currencyOr(fp.customString("Currency"))
		deal.Stage = MapStage(PlatformFolk, fp.customString("Status", "Stage"))
		deal.StageName = GetStageDisplayName(deal.Stage)
		deal.Probability = clampProbability(fp.customFloat("Probability"))
		deal.CloseDate = fp.customString("Close date", "Closing date")
		deal.Website = fp.URLs.first()
		deal.PrimaryContact = stringOr(personName, unknownName)
		deal.PrimaryEmail = email
		if next := fp.customString("Next steps", "Next step"); next != "" {
			deal.NextSteps = []string{next}
		}
		for _, group := range fp.Groups {
			if name := trimmed(string(group.Name)); name != "" {
				deal.Tags = append(deal.Tags, name)
			}
		}

		result.Deals = append(result.Deals, deal)

		// A Folk person with no name and no email carries no identifiable
		// contact; the synthesized deal still imports on its own.
		if personName == "" && email == "" {
			slog.Debug("folk person carries no contact fields", "deal_id", deal.ID)
			continue
		}

		contact := types.DealContact{
			ID:              uuid.NewString(),
			DealID:          deal.ID,
			Name:            stringOr(personName, unknownContact),
			Email:           stringOr(email, sentinelEmail),
			Phone:           fp.Phones.first(),
			Role:            trimmed(string(fp.JobTitle)),
			IsPrimary:       true,
			IsDecisionMaker: false,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		result.DealContacts = append(result.DealContacts, contact)
	}

	return result
}
