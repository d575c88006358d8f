package crm

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/hyperengineering/revline/internal/types"
)

// Platform identifies a supported source CRM.
type Platform string

const (
	PlatformPipedrive  Platform = "pipedrive"
	PlatformSalesforce Platform = "salesforce"
	PlatformHubSpot    Platform = "hubspot"
	PlatformZoho       Platform = "zoho"
	PlatformFolk       Platform = "folk"
)

// SupportedPlatforms lists every platform the dispatcher accepts.
var SupportedPlatforms = []Platform{
	PlatformPipedrive,
	PlatformSalesforce,
	PlatformHubSpot,
	PlatformZoho,
	PlatformFolk,
}

// pipedriveStageIDs maps Pipedrive's default pipeline stage IDs to canonical
// stages. Pipedrive exposes numeric stage identifiers rather than labels.
var pipedriveStageIDs = map[int]types.Stage{
	1: types.StageInterested,
	2: types.StageContacted,
	3: types.StageDemo,
	4: types.StageProposal,
	5: types.StageNegotiation,
	6: types.StageWon,
	7: types.StageLost,
}

// salesforceStages covers the default Salesforce opportunity stage labels.
// Lookup is case-sensitive; unmatched labels fall through to the default.
var salesforceStages = map[string]types.Stage{
	"Prospecting":                types.StageInterested,
	"Qualification":              types.StageContacted,
	"Needs Analysis":             types.StageContacted,
	"Value Proposition":          types.StageDemo,
	"Id. Decision Makers":        types.StageDemo,
	"Perception Analysis":        types.StageNegotiation,
	"Proposal/Price Quote":       types.StageProposal,
	"Negotiation/Review":         types.StageNegotiation,
	"Closed Won":                 types.StageWon,
	"Closed Lost":                types.StageLost,
	"Closed Lost to Competition": types.StageLost,
}

// hubspotStages covers HubSpot's default deal pipeline internal stage names.
var hubspotStages = map[string]types.Stage{
	"appointmentscheduled":  types.StageContacted,
	"qualifiedtobuy":        types.StageContacted,
	"presentationscheduled": types.StageDemo,
	"decisionmakerboughtin": types.StageNegotiation,
	"contractsent":          types.StageProposal,
	"closedwon":             types.StageWon,
	"closedlost":            types.StageLost,
}

// zohoStages covers Zoho's default deal stages. Keys are normalized
// (lowercased) once here; tokens are normalized before lookup.
var zohoStages = map[string]types.Stage{
	"qualification":              types.StageContacted,
	"needs analysis":             types.StageContacted,
	"value proposition":          types.StageDemo,
	"identify decision makers":   types.StageDemo,
	"proposal/price quote":       types.StageProposal,
	"negotiation/review":         types.StageNegotiation,
	"closed won":                 types.StageWon,
	"closed lost":                types.StageLost,
	"closed-lost to competition": types.StageLost,
}

// folkStages covers the stage labels commonly used in Folk group pipelines.
// Keys normalized like zohoStages.
var folkStages = map[string]types.Stage{
	"lead":        types.StageInterested,
	"interested":  types.StageInterested,
	"qualified":   types.StageContacted,
	"contacted":   types.StageContacted,
	"demo":        types.StageDemo,
	"proposal":    types.StageProposal,
	"negotiation": types.StageNegotiation,
	"won":         types.StageWon,
	"lost":        types.StageLost,
}

// stageRule is one keyword-heuristic fallback rule. Rules are evaluated
// top-to-bottom, first match wins; the ordering is load-bearing (a token
// containing both "won" and "lost" resolves to won).
type stageRule struct {
	keywords []string
	stage    types.Stage
}

var fallbackRules = []stageRule{
	{[]string{"qualification", "qualified"}, types.StageContacted},
	{[]string{"demo", "presentation"}, types.StageDemo},
	{[]string{"proposal", "quote"}, types.StageProposal},
	{[]string{"negotiation", "review"}, types.StageNegotiation},
	{[]string{"won"}, types.StageWon},
	{[]string{"lost"}, types.StageLost},
	{[]string{"follow"}, types.StageContacted},
	{[]string{"lead"}, types.StageInterested},
}

// normalizeToken prepares a raw stage token for normalized lookups.
func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// matchFallback runs the ordered keyword heuristic against a raw token.
func matchFallback(token string) (types.Stage, bool) {
	norm := normalizeToken(token)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(norm, kw) {
				return rule.stage, true
			}
		}
	}
	return "", false
}

// MapStage translates a platform-specific stage token into a canonical
// stage. It never fails: tokens with no mapping rule resolve to
// StageInterested. Source platforms allow per-tenant stage customization,
// so exact tables cover the common defaults and the keyword heuristic
// (Zoho, Folk) degrades gracefully instead of rejecting the record.
// Every fallback decision is logged for auditability.
func MapStage(platform Platform, token string) types.Stage {
	switch platform {
	case PlatformPipedrive:
		if id, err := strconv.Atoi(strings.TrimSpace(token)); err == nil {
			if stage, ok := pipedriveStageIDs[id]; ok {
				return stage
			}
		}
	case PlatformSalesforce:
		if stage, ok := salesforceStages[strings.TrimSpace(token)]; ok {
			return stage
		}
	case PlatformHubSpot:
		if stage, ok := hubspotStages[strings.TrimSpace(token)]; ok {
			return stage
		}
	case PlatformZoho:
		if stage, ok := zohoStages[normalizeToken(token)]; ok {
			return stage
		}
		if stage, ok := matchFallback(token); ok {
			slog.Debug("stage heuristic match", "platform", platform, "token", token, "stage", stage)
			return stage
		}
	case PlatformFolk:
		if stage, ok := folkStages[normalizeToken(token)]; ok {
			return stage
		}
		if stage, ok := matchFallback(token); ok {
			slog.Debug("stage heuristic match", "platform", platform, "token", token, "stage", stage)
			return stage
		}
	}

	slog.Debug("stage default applied", "platform", platform, "token", token, "stage", types.StageInterested)
	return types.StageInterested
}
