package risk

import (
	"fmt"
	"math"

	"vnEquityBot/internal/ports"
)

// RiskConfig holds the position sizing parameters.
type RiskConfig struct {
	BaseRiskPerTrade    float64 // Fraction of equity risked per trade before adjustments
	ReferenceVolatility float64 // Annualized volatility at which no adjustment applies
	VolCapAdjustment    float64 // Upper bound of the volatility adjustment
	MaxSignalMultiplier float64 // Upper bound of the signal multiplier
	MinPositionSize     float64 // Minimum position value as a fraction of equity
	MaxPositionSize     float64 // Maximum position value as a fraction of equity
	StopMultiplier      float64 // Stop distance in ATRs
	MinStopPct          float64
	MaxStopPct          float64
	StopLossPct         float64 // Stop distance when ATR is unavailable
	TakeProfitPct       float64
	RewardRiskRatio     float64 // Second target distance in multiples of the stop distance
	LotSize             float64 // Board lot; share counts are multiples of it
}

// DefaultRiskConfig returns sizing defaults for HOSE-listed equities.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		BaseRiskPerTrade:    0.02,
		ReferenceVolatility: 0.30,
		VolCapAdjustment:    1.5,
		MaxSignalMultiplier: 1.5,
		MinPositionSize:     0.02,
		MaxPositionSize:     0.10,
		StopMultiplier:      2.0,
		MinStopPct:          0.03,
		MaxStopPct:          0.12,
		StopLossPct:         0.08,
		TakeProfitPct:       0.15,
		RewardRiskRatio:     2.0,
		LotSize:             100,
	}
}

// Validate checks ranges and cross-field ordering.
func (c RiskConfig) Validate() error {
	var errs []string
	positive := map[string]float64{
		"base_risk_per_trade":   c.BaseRiskPerTrade,
		"reference_volatility":  c.ReferenceVolatility,
		"vol_cap_adjustment":    c.VolCapAdjustment,
		"max_signal_multiplier": c.MaxSignalMultiplier,
		"min_position_size":     c.MinPositionSize,
		"stop_multiplier":       c.StopMultiplier,
		"min_stop_pct":          c.MinStopPct,
		"stop_loss_pct":         c.StopLossPct,
		"take_profit_pct":       c.TakeProfitPct,
		"reward_risk_ratio":     c.RewardRiskRatio,
		"lot_size":              c.LotSize,
	}
	for _, name := range sortedKeys(positive) {
		if !(positive[name] > 0) {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}
	if c.MaxPositionSize < c.MinPositionSize || c.MaxPositionSize > 1 {
		errs = append(errs, "max_position_size must be within [min_position_size, 1]")
	}
	if c.MaxStopPct < c.MinStopPct || c.MaxStopPct >= 1 {
		errs = append(errs, "max_stop_pct must be within [min_stop_pct, 1)")
	}
	if c.MaxSignalMultiplier < 1 {
		errs = append(errs, "max_signal_multiplier must be at least 1")
	}
	if c.LotSize != math.Trunc(c.LotSize) {
		errs = append(errs, "lot_size must be a whole number of shares")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: risk config: %v", ports.ErrInvalidConfiguration, errs)
	}
	return nil
}

// SizingInput is what the sizer knows about a candidate entry.
type SizingInput struct {
	Price      float64 // Intended fill price
	Equity     float64 // Current portfolio equity
	Volatility float64 // Annualized volatility; non-positive means unknown
	ATR        float64 // Average true range; non-positive means unavailable
	Score      float64 // Composite signal score in [0,100]
}

// Sizing is the sizer's decision for one entry.
type Sizing struct {
	Shares           float64
	Value            float64
	Fraction         float64 // Value / Equity
	RiskAmount       float64
	VolatilityAdj    float64
	SignalMultiplier float64
	StopPct          float64
	StopPrice        float64
	TakeProfits      []float64 // Ascending
	Degenerate       bool      // Volatility fell back to the reference value
}

// RiskManager sizes positions from equity, volatility and signal strength.
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) (*RiskManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RiskManager{config: config}, nil
}

// Config returns the sizing parameters.
func (r *RiskManager) Config() RiskConfig {
	return r.config
}

// Size computes share count, stop and targets for an entry. It returns
// ErrConstraintViolation when no lot-rounded share count fits the size bounds.
func (r *RiskManager) Size(in SizingInput) (Sizing, error) {
	c := r.config
	if !(in.Price > 0) || !(in.Equity > 0) {
		return Sizing{}, fmt.Errorf("%w: price %.2f and equity %.2f must be positive", ports.ErrConstraintViolation, in.Price, in.Equity)
	}

	out := Sizing{}
	vol := in.Volatility
	if !(vol > 0) || math.IsInf(vol, 0) {
		vol = c.ReferenceVolatility
		out.Degenerate = true
	}
	out.VolatilityAdj = math.Min(c.ReferenceVolatility/vol, c.VolCapAdjustment)
	out.SignalMultiplier = r.SignalMultiplier(in.Score)
	out.RiskAmount = in.Equity * c.BaseRiskPerTrade * out.VolatilityAdj * out.SignalMultiplier

	out.StopPct = r.StopPct(in.Price, in.ATR)
	out.StopPrice = r.GetStopLoss(in.Price, out.StopPct)
	out.TakeProfits = r.GetTakeProfits(in.Price, out.StopPct)

	fraction := clamp((out.RiskAmount/out.StopPct)/in.Equity, c.MinPositionSize, c.MaxPositionSize)
	lotValue := c.LotSize * in.Price
	lots := math.Floor(fraction*in.Equity/lotValue + 1e-9)
	if lots*lotValue/in.Equity < c.MinPositionSize {
		lots++
	}
	if lots <= 0 || lots*lotValue/in.Equity > c.MaxPositionSize+1e-12 {
		return Sizing{}, fmt.Errorf("%w: one lot of %.0f shares at %.2f is %.2f%% of equity, allowed %.2f%%-%.2f%%",
			ports.ErrConstraintViolation, c.LotSize, in.Price, 100*lotValue/in.Equity, 100*c.MinPositionSize, 100*c.MaxPositionSize)
	}

	out.Shares = lots * c.LotSize
	out.Value = out.Shares * in.Price
	out.Fraction = out.Value / in.Equity
	return out, nil
}

// SignalMultiplier scales risk with signal conviction: 1 at a neutral score, up to
// MaxSignalMultiplier at 100 and down to 0.5 at 0.
func (r *RiskManager) SignalMultiplier(score float64) float64 {
	k := 0.5
	if score > 50 {
		k = r.config.MaxSignalMultiplier - 1
	}
	return clamp(1+(score-50)/50*k, 0.5, r.config.MaxSignalMultiplier)
}

// StopPct returns the stop distance as a fraction of price.
func (r *RiskManager) StopPct(price, atr float64) float64 {
	pct := r.config.StopLossPct
	if atr > 0 && price > 0 {
		pct = atr * r.config.StopMultiplier / price
	}
	return clamp(pct, r.config.MinStopPct, r.config.MaxStopPct)
}

// GetStopLoss calculates the stop loss price for a long position
func (r *RiskManager) GetStopLoss(entryPrice, stopPct float64) float64 {
	return entryPrice * (1 - stopPct)
}

// GetTakeProfits calculates the ascending take-profit prices for a long position
func (r *RiskManager) GetTakeProfits(entryPrice, stopPct float64) []float64 {
	a := entryPrice * (1 + r.config.TakeProfitPct)
	b := entryPrice * (1 + r.config.RewardRiskRatio*stopPct)
	if b < a {
		a, b = b, a
	}
	return []float64{a, b}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
