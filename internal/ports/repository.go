package ports

import (
	"context"

	"vnEquityBot/internal/domain"
)

// RunRepository defines the interface for storing and retrieving backtest runs.
type RunRepository interface {
	// SaveRun stores a completed run with its trades and equity curve.
	SaveRun(ctx context.Context, run *domain.BacktestRun) error
	// FindRun retrieves a run by ID.
	// Returns nil, nil if not found.
	FindRun(ctx context.Context, id string) (*domain.BacktestRun, error)
	// ListRuns retrieves the most recent runs, newest first, up to a limit.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error)
}
