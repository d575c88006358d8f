package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/revline/internal/types"
)

// InsightStore defines the store operations needed by the insight worker.
type InsightStore interface {
	GetDealsMissingInsights(ctx context.Context, limit int) ([]types.Deal, error)
	UpdateDealInsights(ctx context.Context, id string, insights types.DealInsights) error
}

// InsightGenerator defines the generation operations needed by the worker.
type InsightGenerator interface {
	Generate(ctx context.Context, deal types.Deal) (*types.DealInsights, error)
}

// InsightWorker backfills AI insights for deals imported without them.
type InsightWorker struct {
	store       InsightStore
	generator   InsightGenerator
	interval    time.Duration
	maxAttempts int
	batchSize   int
	attempts    map[string]int // tracks generation attempts per deal ID
}

// NewInsightWorker creates a new insight backfill worker.
func NewInsightWorker(
	s InsightStore,
	g InsightGenerator,
	interval time.Duration,
	maxAttempts int,
	batchSize int,
) *InsightWorker {
	return &InsightWorker{
		store:       s,
		generator:   g,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		attempts:    make(map[string]int),
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *InsightWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start, then on each tick
	w.processMissingInsights(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processMissingInsights(ctx)
		}
	}
}

func (w *InsightWorker) processMissingInsights(ctx context.Context) {
	deals, err := w.store.GetDealsMissingInsights(ctx, w.batchSize)
	if err != nil {
		slog.Error("failed to get deals missing insights",
			"error", err,
			"component", "worker",
		)
		return
	}

	if len(deals) == 0 {
		return
	}

	for _, deal := range deals {
		if ctx.Err() != nil {
			return
		}
		if w.attempts[deal.ID] >= w.maxAttempts {
			continue
		}
		w.attempts[deal.ID]++

		insights, err := w.generator.Generate(ctx, deal)
		if err != nil {
			slog.Warn("insight generation failed",
				"error", err,
				"deal_id", deal.ID,
				"attempt", w.attempts[deal.ID],
				"component", "worker",
			)
			continue
		}

		if err := w.store.UpdateDealInsights(ctx, deal.ID, *insights); err != nil {
			slog.Error("failed to store insights",
				"error", err,
				"deal_id", deal.ID,
				"component", "worker",
			)
			continue
		}

		delete(w.attempts, deal.ID)
		slog.Info("deal insights backfilled",
			"deal_id", deal.ID,
			"momentum", insights.Momentum,
			"component", "worker",
		)
	}
}
