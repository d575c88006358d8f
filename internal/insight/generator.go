package insight

import (
	"context"

	"github.com/hyperengineering/revline/internal/types"
)

// Generator produces AI-generated narrative fields for a deal.
type Generator interface {
	Generate(ctx context.Context, deal types.Deal) (*types.DealInsights, error)
	ModelName() string
}
