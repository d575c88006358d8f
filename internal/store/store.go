package store

import (
	"context"

	"github.com/hyperengineering/revline/internal/types"
)

// Store defines the interface contract for deal persistence.
type Store interface {
	InsertDealBatch(ctx context.Context, batch *types.TransformResult) error
	ListDeals(ctx context.Context, accountID string) ([]types.Deal, error)
	GetDeal(ctx context.Context, id string) (*types.Deal, error)
	GetDealContacts(ctx context.Context, dealID string) ([]types.DealContact, error)
	UpdateDealInsights(ctx context.Context, id string, insights types.DealInsights) error
	GetDealsMissingInsights(ctx context.Context, limit int) ([]types.Deal, error)
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
