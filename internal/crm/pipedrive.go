package crm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hyperengineering/revline/internal/types"
)

// Placeholders for fields the source record does not carry. The email
// sentinel satisfies the non-null contact email contract downstream.
const (
	unknownName    = "Unknown"
	unknownContact = "Unknown Contact"
	sentinelEmail  = "unknown@example.com"
)

type pipedriveOrg struct {
	Name flexString `json:"name"`
}

// Pipedrive returns org_id either expanded as an object or as a bare
// numeric ID. Only the expanded form carries a name.
func (o *pipedriveOrg) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type alias pipedriveOrg
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*o = pipedriveOrg(a)
	return nil
}

type pipedrivePerson struct {
	Name flexString `json:"name"`
	// Email may be an array of {value} objects, a bare string, or absent.
	Email        stringList `json:"email"`
	PrimaryEmail flexString `json:"primary_email"`
	EmailAddress flexString `json:"email_address"`
	Phone        stringList `json:"phone"`
}

func (p *pipedrivePerson) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	type alias pipedrivePerson
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*p = pipedrivePerson(a)
	return nil
}

// primaryEmailValue tries the known Pipedrive email shapes in order:
// email[0].value (or bare email string), primary_email, email_address.
func (p *pipedrivePerson) primaryEmailValue() string {
	if v := p.Email.first(); v != "" {
		return v
	}
	if v := trimmed(string(p.PrimaryEmail)); v != "" {
		return v
	}
	return trimmed(string(p.EmailAddress))
}

type pipedriveDeal struct {
	Title             flexString       `json:"title"`
	Value             flexFloat        `json:"value"`
	Currency          flexString       `json:"currency"`
	StageID           flexFloat        `json:"stage_id"`
	Probability       flexFloat        `json:"probability"`
	ExpectedCloseDate flexString       `json:"expected_close_date"`
	OrgID             *pipedriveOrg    `json:"org_id"`
	PersonID          *pipedrivePerson `json:"person_id"`
	AddTime           flexString       `json:"add_time"`
	UpdateTime        flexString       `json:"update_time"`
	NextActivityNote  flexString       `json:"next_activity_note"`
}

func transformPipedrive(records []json.RawMessage, accountID, createdBy string, now time.Time) *types.TransformResult {
	result := newResult()

	for _, raw := range records {
		var pd pipedriveDeal
		if err := json.Unmarshal(raw, &pd); err != nil {
			slog.Debug("pipedrive record decode failed, applying defaults", "error", err)
			pd = pipedriveDeal{}
		}

		companyName := unknownName
		if pd.OrgID != nil {
			companyName = stringOr(string(pd.OrgID.Name), unknownName)
		}

		contactName := ""
		contactEmail := ""
		if pd.PersonID != nil {
			contactName = trimmed(string(pd.PersonID.Name))
			contactEmail = pd.PersonID.primaryEmailValue()
		}

		deal := baseDeal(accountID, createdBy, string(PlatformPipedrive), now)
		deal.CompanyName = companyName
		deal.DealTitle = trimmed(string(pd.Title))
		deal.ValueAmount = nonNegative(float64(pd.Value))
		deal.ValueCurrency = currencyOr(string(pd.Currency))
		deal.Stage = MapStage(PlatformPipedrive, strconv.Itoa(int(pd.StageID)))
		deal.StageName = GetStageDisplayName(deal.Stage)
		deal.Probability = clampProbability(float64(pd.Probability))
		deal.CloseDate = trimmed(string(pd.ExpectedCloseDate))
		deal.PrimaryContact = stringOr(contactName, unknownName)
		deal.PrimaryEmail = contactEmail
		deal.CreatedAt = parseTimeOr(string(pd.AddTime), now)
		deal.UpdatedAt = parseTimeOr(string(pd.UpdateTime), now)
		if note := trimmed(string(pd.NextActivityNote)); note != "" {
			deal.NextSteps = []string{note}
		}

		result.Deals = append(result.Deals, deal)

		// Zero or one contact: only when the record carries a person at all.
		if pd.PersonID != nil {
			contact := types.DealContact{
				ID:              uuid.NewString(),
				DealID:          deal.ID,
				Name:            stringOr(contactName, unknownContact),
				Email:           stringOr(contactEmail, sentinelEmail),
				Phone:           pd.PersonID.Phone.first(),
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

// baseDeal returns a Deal with generated identity, neutral AI fields, and
// caller-supplied ownership threaded through unchanged.
func baseDeal(accountID, createdBy, source string, now time.Time) types.Deal {
	return types.Deal{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		CompanyName:   unknownName,
		ValueCurrency: "USD",
		Stage:         types.StageInterested,
		Source:        source,
		PainPoints:    []string{},
		NextSteps:     []string{},
		Blockers:      []string{},
		Opportunities: []string{},
		Tags:          []string{},
		Momentum:      0,
		MomentumTrend: types.TrendSteady,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     createdBy,
		UpdatedBy:     createdBy,
	}
}

// currencyOr defaults an empty currency code to USD.
func currencyOr(code string) string {
	if v := trimmed(code); v != "" {
		return v
	}
	return "USD"
}
