package crm

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hyperengineering/revline/internal/types"
)

// zohoRef is a Zoho lookup reference: usually {"name": ..., "id": ...},
// occasionally a bare string.
type zohoRef struct {
	Name flexString `json:"name"`
	ID   flexString `json:"id"`
}

func (r *zohoRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		r.Name = flexString(s)
		return nil
	}
	if data[0] != '{' {
		return nil
	}
	type alias zohoRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil
	}
	*r = zohoRef(a)
	return nil
}

type zohoDeal struct {
	DealName     flexString `json:"Deal_Name"`
	Amount       flexFloat  `json:"Amount"`
	Stage        flexString `json:"Stage"`
	Probability  flexFloat  `json:"Probability"`
	ClosingDate  flexString `json:"Closing_Date"`
	AccountName  zohoRef    `json:"Account_Name"`
	ContactName  zohoRef    `json:"Contact_Name"`
	Email        flexString `json:"Email"`
	CreatedTime  flexString `json:"Created_Time"`
	ModifiedTime flexString `json:"Modified_Time"`
	Tag          stringList `json:"Tag"`
}

type zohoContact struct {
	ID       flexString `json:"id"`
	FullName flexString `json:"Full_Name"`
	Email    flexString `json:"Email"`
	Phone    flexString `json:"Phone"`
	Title    flexString `json:"Title"`
}

type zohoEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// unwrapZoho detects the dual-payload shape [{data: Deal[]}, {data:
// Contact[]}] that Zoho imports arrive in when the caller also fetched the
// contacts module. Anything else is treated as a flat deal array.
func unwrapZoho(records []json.RawMessage) (deals []json.RawMessage, contacts map[string]zohoContact) {
	contacts = make(map[string]zohoContact)

	if len(records) == 2 {
		var dealEnv, contactEnv zohoEnvelope
		dealOK := json.Unmarshal(records[0], &dealEnv) == nil && dealEnv.Data != nil
		contactOK := json.Unmarshal(records[1], &contactEnv) == nil && contactEnv.Data != nil
		if dealOK && contactOK {
			for _, raw := range contactEnv.Data {
				var c zohoContact
				if err := json.Unmarshal(raw, &c); err != nil {
					continue
				}
				if id := trimmed(string(c.ID)); id != "" {
					contacts[id] = c
				}
			}
			return dealEnv.Data, contacts
		}
	}

	// Single-envelope shape: [{data: Deal[]}] without the contacts module.
	if len(records) == 1 {
		var env zohoEnvelope
		if json.Unmarshal(records[0], &env) == nil && env.Data != nil {
			return env.Data, contacts
		}
	}

	return records, contacts
}

// transformZoho normalizes Zoho deal records, cross-referencing the
// secondary contacts payload by Contact_Name.id to backfill email and phone
// fields that Zoho's deal endpoint only partially populates.
func transformZoho(records []json.RawMessage, accountID, createdBy string, now time.Time) *types.TransformResult {
	result := newResult()
	dealRecords, contactIndex := unwrapZoho(records)

	for _, raw := range dealRecords {
		var zd zohoDeal
		if err := json.Unmarshal(raw, &zd); err != nil {
			slog.Debug("zoho record decode failed, applying defaults", "error", err)
			zd = zohoDeal{}
		}

		contactName := trimmed(string(zd.ContactName.Name))
		contactEmail := trimmed(string(zd.Email))
		contactPhone := ""
		contactRole := ""

		// Backfill from the contacts payload when the deal record is sparse.
		if id := trimmed(string(zd.ContactName.ID)); id != "" {
			if c, ok := contactIndex[id]; ok {
				if contactEmail == "" {
					contactEmail = trimmed(string(c.Email))
				}
				if contactName == "" {
					contactName = trimmed(string(c.FullName))
				}
				contactPhone = trimmed(string(c.Phone))
				contactRole = trimmed(string(c.Title))
			}
		}

		deal := baseDeal(accountID, createdBy, string(PlatformZoho), now)
		deal.CompanyName = stringOr(string(zd.AccountName.Name), unknownName)
		deal.DealTitle = trimmed(string(zd.DealName))
		deal.ValueAmount = nonNegative(float64(zd.Amount))
		deal.Stage = MapStage(PlatformZoho, string(zd.Stage))
		deal.StageName = GetStageDisplayName(deal.Stage)
		deal.Probability = clampProbability(float64(zd.Probability))
		deal.CloseDate = trimmed(string(zd.ClosingDate))
		deal.PrimaryContact = stringOr(contactName, unknownName)
		deal.PrimaryEmail = contactEmail
		if len(zd.Tag) > 0 {
			deal.Tags = zd.Tag
		}
		deal.CreatedAt = parseTimeOr(string(zd.CreatedTime), now)
		deal.UpdatedAt = parseTimeOr(string(zd.ModifiedTime), now)

		result.Deals = append(result.Deals, deal)

		// Zero or one contact: only when the deal references a person.
		if contactName == "" && trimmed(string(zd.ContactName.ID)) == "" {
			continue
		}
		contact := types.DealContact{
			ID:              uuid.NewString(),
			DealID:          deal.ID,
			Name:            stringOr(contactName, unknownContact),
			Email:           stringOr(contactEmail, sentinelEmail),
			Phone:           contactPhone,
			Role:            contactRole,
			IsPrimary:       true,
			IsDecisionMaker: false,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		result.DealContacts = append(result.DealContacts, contact)
	}

	return result
}
