package storage

import (
	"context"
	"time"

	"investment-x/internal/domain"
)

// PriceStore provides access to daily price observations.
type PriceStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_code, date).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTimeRange retrieves points for the given codes within [start, end]
	// (inclusive), ordered by asset_code ASC, date ASC. Zero bounds are open.
	GetByTimeRange(ctx context.Context, codes []string, start, end time.Time) ([]*domain.PricePoint, error)

	// GetDateRange returns the first and last observation dates of a code.
	// Returns ErrNotFound if the code has no observations.
	GetDateRange(ctx context.Context, code string) (first, last time.Time, err error)
}

// RunStore persists completed backtest runs. Runs are append-only.
type RunStore interface {
	// Insert adds a run with its book. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.Run) error

	// GetByID retrieves a run and its book. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.Run, error)

	// GetByStrategy retrieves all runs of a strategy with their books,
	// ordered by created_at ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Run, error)
}
