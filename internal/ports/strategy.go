package ports

import (
	"context"

	"vnEquityBot/internal/domain"
)

// SignalScorer turns a recent window of bars and their indicator sets into a
// composite verdict. bars and sets are aligned and end at the scored date.
type SignalScorer interface {
	// Score must be deterministic: identical inputs yield identical output.
	Score(ctx context.Context, symbol string, bars []domain.Bar, sets []domain.IndicatorSet) (domain.CompositeSignal, error)

	// WindowSize returns how many trailing dates the scorer wants to see.
	WindowSize() int
}
