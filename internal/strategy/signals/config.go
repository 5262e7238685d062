package signals

import (
	"fmt"
	"math"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

// Neutral is the starting score of every component.
const Neutral = 50.0

// minWindow covers the 10-day lookbacks plus the scored day.
const minWindow = 11

// Weights are the component weights of the composite score.
type Weights struct {
	Volume       float64 `yaml:"volume" json:"volume"`
	PriceAction  float64 `yaml:"price_action" json:"price_action"`
	Momentum     float64 `yaml:"momentum" json:"momentum"`
	Accumulation float64 `yaml:"accumulation" json:"accumulation"`
	SmartMoney   float64 `yaml:"smart_money" json:"smart_money"`
}

// DefaultWeights returns the standard component weighting.
func DefaultWeights() Weights {
	return Weights{
		Volume:       0.25,
		PriceAction:  0.25,
		Momentum:     0.20,
		Accumulation: 0.15,
		SmartMoney:   0.15,
	}
}

func (w Weights) sum() float64 {
	return w.Volume + w.PriceAction + w.Momentum + w.Accumulation + w.SmartMoney
}

// Thresholds maps composite scores to classifications. The same values drive the
// backtest's entry (Buy) and signal-exit (Sell) rules.
type Thresholds struct {
	StrongBuy  float64 `yaml:"strong_buy" json:"strong_buy"`
	Buy        float64 `yaml:"buy" json:"buy"`
	WeakBuy    float64 `yaml:"weak_buy" json:"weak_buy"`
	WeakSell   float64 `yaml:"weak_sell" json:"weak_sell"`
	Sell       float64 `yaml:"sell" json:"sell"`
	StrongSell float64 `yaml:"strong_sell" json:"strong_sell"`
}

// DefaultThresholds returns the standard classification table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StrongBuy:  70,
		Buy:        58,
		WeakBuy:    52,
		WeakSell:   45,
		Sell:       38,
		StrongSell: 25,
	}
}

// Validate checks StrongSell < Sell < WeakSell < WeakBuy < Buy < StrongBuy within [0,100].
func (t Thresholds) Validate() error {
	ordered := []float64{t.StrongSell, t.Sell, t.WeakSell, t.WeakBuy, t.Buy, t.StrongBuy}
	for i, v := range ordered {
		if v < 0 || v > 100 || math.IsNaN(v) {
			return fmt.Errorf("%w: threshold %v outside [0,100]", ports.ErrInvalidConfiguration, v)
		}
		if i > 0 && v <= ordered[i-1] {
			return fmt.Errorf("%w: thresholds must be strictly ordered strong_sell < sell < weak_sell < weak_buy < buy < strong_buy, got %v", ports.ErrInvalidConfiguration, ordered)
		}
	}
	return nil
}

// Classify converts a score into a classification.
func (t Thresholds) Classify(score float64) domain.Classification {
	switch {
	case score >= t.StrongBuy:
		return domain.StrongBuy
	case score >= t.Buy:
		return domain.Buy
	case score >= t.WeakBuy:
		return domain.WeakBuy
	case score <= t.StrongSell:
		return domain.StrongSell
	case score <= t.Sell:
		return domain.Sell
	case score <= t.WeakSell:
		return domain.WeakSell
	default:
		return domain.Hold
	}
}

var actions = map[domain.Classification]string{
	domain.StrongBuy:  "Strong buy: accumulate position",
	domain.Buy:        "Buy: open position",
	domain.WeakBuy:    "Weak buy: watch for confirmation",
	domain.Hold:       "Hold: no action",
	domain.WeakSell:   "Weak sell: tighten stops",
	domain.Sell:       "Sell: close position",
	domain.StrongSell: "Strong sell: exit immediately",
}

// Action returns the fixed recommendation text for a classification.
func Action(c domain.Classification) string {
	return actions[c]
}

// Config holds scorer settings.
type Config struct {
	Window              int
	Weights             Weights
	Thresholds          Thresholds
	RegionalMultipliers map[string]float64 // per-symbol multiplier applied after aggregation
}

// DefaultConfig returns the standard scorer configuration.
func DefaultConfig() Config {
	return Config{
		Window:     30,
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
	}
}

// Validate checks weights, thresholds, window and multipliers.
func (c Config) Validate() error {
	if c.Window < minWindow {
		return fmt.Errorf("%w: signal window must be at least %d, got %d", ports.ErrInvalidConfiguration, minWindow, c.Window)
	}
	w := c.Weights
	for _, v := range []float64{w.Volume, w.PriceAction, w.Momentum, w.Accumulation, w.SmartMoney} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: component weights must be non-negative", ports.ErrInvalidConfiguration)
		}
	}
	if math.Abs(w.sum()-1) > 1e-6 {
		return fmt.Errorf("%w: component weights must sum to 1, got %.6f", ports.ErrInvalidConfiguration, w.sum())
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for symbol, m := range c.RegionalMultipliers {
		if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: regional multiplier for %s must be positive, got %v", ports.ErrInvalidConfiguration, symbol, m)
		}
	}
	return nil
}
