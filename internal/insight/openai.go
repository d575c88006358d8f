package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/revline/internal/crm"
	"github.com/hyperengineering/revline/internal/types"
)

// Compile-time interface check
var _ Generator = (*OpenAI)(nil)

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the insight generator using OpenAI's API.
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates a new OpenAI insight generator.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: openai.ChatModel(model),
	}
}

const systemPrompt = `You analyze B2B sales deals. Respond with a single JSON object with keys:
"summary" (string), "pain_points", "next_steps", "blockers", "opportunities"
(arrays of short strings), "momentum" (number from -100 to 100) and
"momentum_trend" (one of "up", "steady", "down"). No other text.`

// Generate produces insights for one deal. The model output is treated as
// untrusted: it is parsed defensively and normalized before use.
func (o *OpenAI) Generate(ctx context.Context, deal types.Deal) (*types.DealInsights, error) {
	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(dealPrompt(deal)),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("insight generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("insight generation failed: no choices returned")
	}

	insights, err := parseInsights(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("insight generation failed: %w", err)
	}
	return insights, nil
}

// ModelName returns the chat model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

// dealPrompt renders the deal's denormalized fields for the model.
func dealPrompt(deal types.Deal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", deal.CompanyName)
	if deal.DealTitle != "" {
		fmt.Fprintf(&b, "Deal: %s\n", deal.DealTitle)
	}
	fmt.Fprintf(&b, "Value: %s\n", crm.FormatValue(deal.ValueAmount, deal.ValueCurrency))
	fmt.Fprintf(&b, "Stage: %s\n", crm.GetStageDisplayName(deal.Stage))
	if deal.Probability > 0 {
		fmt.Fprintf(&b, "Probability: %.0f%%\n", deal.Probability)
	}
	if deal.CloseDate != "" {
		fmt.Fprintf(&b, "Close date: %s\n", deal.CloseDate)
	}
	fmt.Fprintf(&b, "Primary contact: %s", deal.PrimaryContact)
	if deal.PrimaryEmail != "" {
		fmt.Fprintf(&b, " <%s>", deal.PrimaryEmail)
	}
	b.WriteString("\n")
	if len(deal.NextSteps) > 0 {
		fmt.Fprintf(&b, "Known next steps: %s\n", strings.Join(deal.NextSteps, "; "))
	}
	if len(deal.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(deal.Tags, ", "))
	}
	fmt.Fprintf(&b, "Source: %s\n", deal.Source)
	return b.String()
}

// parseInsights decodes the model's JSON response, tolerating markdown code
// fences, and normalizes momentum fields.
func parseInsights(content string) (*types.DealInsights, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var insights types.DealInsights
	if err := json.Unmarshal([]byte(content), &insights); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	if insights.Momentum < -100 {
		insights.Momentum = -100
	}
	if insights.Momentum > 100 {
		insights.Momentum = 100
	}
	switch insights.MomentumTrend {
	case types.TrendUp, types.TrendSteady, types.TrendDown:
	default:
		insights.MomentumTrend = types.TrendSteady
	}
	if insights.PainPoints == nil {
		insights.PainPoints = []string{}
	}
	if insights.NextSteps == nil {
		insights.NextSteps = []string{}
	}
	if insights.Blockers == nil {
		insights.Blockers = []string{}
	}
	if insights.Opportunities == nil {
		insights.Opportunities = []string{}
	}
	return &insights, nil
}
