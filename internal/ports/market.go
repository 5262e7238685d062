package ports

import (
	"context"

	"vnEquityBot/internal/domain"
)

// BarSource is the external price-data collaborator. Implementations return bars in
// ascending date order; the engine still validates ordering before simulating.
type BarSource interface {
	// Symbols lists the symbols the source can serve, sorted.
	Symbols(ctx context.Context) ([]string, error)

	// LoadBars loads the full daily history of each requested symbol.
	LoadBars(ctx context.Context, symbols []string) (map[string][]domain.Bar, error)
}
