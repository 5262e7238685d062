package signals

import (
	"context"
	"fmt"
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

// Scorer computes composite signals from a trailing window of bars and indicators.
type Scorer struct {
	config     Config
	components []Component
}

var _ ports.SignalScorer = (*Scorer)(nil)

// NewScorer creates a scorer after validating its configuration.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{config: cfg, components: Components()}, nil
}

// WindowSize returns the number of trailing days the scorer reads.
func (s *Scorer) WindowSize() int {
	return s.config.Window
}

// Thresholds returns the classification table in use.
func (s *Scorer) Thresholds() Thresholds {
	return s.config.Thresholds
}

// Score computes the composite signal at the last bar. Inputs longer than the window
// are trimmed to it.
func (s *Scorer) Score(ctx context.Context, symbol string, bars []domain.Bar, sets []domain.IndicatorSet) (domain.CompositeSignal, error) {
	if err := ctx.Err(); err != nil {
		return domain.CompositeSignal{}, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	if len(bars) > s.config.Window {
		bars = bars[len(bars)-s.config.Window:]
	}
	if len(sets) > s.config.Window {
		sets = sets[len(sets)-s.config.Window:]
	}

	f, err := ExtractFeatures(bars, sets)
	if err != nil {
		return domain.CompositeSignal{}, fmt.Errorf("scoring %s: %w", symbol, err)
	}
	return s.ScoreFeatures(symbol, bars[len(bars)-1].Date, f), nil
}

// ScoreFeatures aggregates the component scores for already extracted features.
func (s *Scorer) ScoreFeatures(symbol string, date time.Time, f *Features) domain.CompositeSignal {
	comps := make([]domain.SignalComponent, 0, len(s.components))
	composite := 0.0
	strength := 0.0
	for _, c := range s.components {
		w := s.config.Weights.of(c.Name)
		sc := c.Evaluate(f, w)
		comps = append(comps, sc)
		composite += w * sc.Score
		if sc.Score > Neutral {
			strength += w
		}
	}

	if m, ok := s.config.RegionalMultipliers[symbol]; ok {
		composite *= m
	}
	composite = clamp(composite, 0, 100)
	class := s.config.Thresholds.Classify(composite)

	return domain.CompositeSignal{
		Symbol:         symbol,
		Date:           date,
		Score:          composite,
		Classification: class,
		Action:         Action(class),
		Strength:       clamp(strength, 0, 1),
		Components:     comps,
	}
}
