package signals

import (
	"math"

	"vnEquityBot/internal/domain"
)

// Rule adjusts a component score by Delta when its condition holds.
type Rule struct {
	Name    string
	Tag     string
	Bullish bool
	Delta   float64
	When    func(*Features) bool
}

// Component is a named, weighted list of rules evaluated in order.
type Component struct {
	Name  string
	Rules []Rule
}

// Component names.
const (
	ComponentVolume       = "volume"
	ComponentPriceAction  = "price_action"
	ComponentMomentum     = "momentum"
	ComponentAccumulation = "accumulation"
	ComponentSmartMoney   = "smart_money"
)

// Evaluate starts at Neutral, applies every matching rule and clamps to [0,100].
func (c Component) Evaluate(f *Features, weight float64) domain.SignalComponent {
	score := Neutral
	var obs []domain.Observation
	for _, r := range c.Rules {
		if !r.When(f) {
			continue
		}
		score += r.Delta
		obs = append(obs, domain.Observation{
			Tag:      r.Tag,
			Bullish:  r.Bullish,
			Strength: math.Abs(r.Delta) / 100,
		})
	}
	return domain.SignalComponent{
		Name:         c.Name,
		Weight:       weight,
		Score:        clamp(score, 0, 100),
		Observations: obs,
	}
}

var volumeRules = []Rule{
	{Name: "stealth_accumulation", Tag: "heavy volume with contained price move", Bullish: true, Delta: 20,
		When: func(f *Features) bool { return f.VolumeRatio > 1.5 && math.Abs(f.PriceChange) < 0.02 }},
	{Name: "volume_trend_rising", Tag: "rising volume trend", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.VolumeTrend > 1.1 }},
	{Name: "volume_trend_falling", Tag: "falling volume trend", Bullish: false, Delta: -10,
		When: func(f *Features) bool { return f.VolumeTrend < 0.9 }},
	{Name: "volume_breakout", Tag: "price breakout on heavy volume", Bullish: true, Delta: 10,
		When: func(f *Features) bool { return f.VolumeRatio > 1.5 && f.PriceChange > 0.02 }},
	{Name: "distribution_day", Tag: "price drop on heavy volume", Bullish: false, Delta: -20,
		When: func(f *Features) bool { return f.VolumeRatio > 1.5 && f.PriceChange < -0.02 }},
	{Name: "obv_rising", Tag: "on-balance volume rising", Bullish: true, Delta: 10,
		When: func(f *Features) bool { return f.OBV10 > 0 }},
	{Name: "obv_falling", Tag: "on-balance volume falling", Bullish: false, Delta: -10,
		When: func(f *Features) bool { return f.OBV10 < 0 }},
}

var priceActionRules = []Rule{
	{Name: "bullish_ma_alignment", Tag: "close above SMA10 above SMA20", Bullish: true, Delta: 20,
		When: func(f *Features) bool { return f.Close > f.Set.SMA10 && f.Set.SMA10 > f.Set.SMA20 }},
	{Name: "bearish_ma_alignment", Tag: "close below SMA10 below SMA20", Bullish: false, Delta: -20,
		When: func(f *Features) bool { return f.Close < f.Set.SMA10 && f.Set.SMA10 < f.Set.SMA20 }},
	{Name: "macd_bullish_crossover", Tag: "MACD crossed above signal", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.MACDBullishCross }},
	{Name: "macd_bearish_crossover", Tag: "MACD crossed below signal", Bullish: false, Delta: -15,
		When: func(f *Features) bool { return f.MACDBearishCross }},
	{Name: "near_support", Tag: "price near lower Bollinger band", Bullish: true, Delta: 12,
		When: func(f *Features) bool {
			lower := f.Set.BollingerLower
			return f.Set.BollingerUpper > lower && f.Close >= lower && f.Close <= lower*1.03
		}},
	{Name: "overextended", Tag: "price above upper Bollinger band", Bullish: false, Delta: -10,
		When: func(f *Features) bool { return f.Close > f.Set.BollingerUpper }},
}

var momentumRules = []Rule{
	{Name: "oversold", Tag: "RSI below 30", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.Set.RSI < 30 }},
	{Name: "overbought", Tag: "RSI above 70", Bullish: false, Delta: -15,
		When: func(f *Features) bool { return f.Set.RSI > 70 }},
	{Name: "momentum_volume_confirmed", Tag: "10-day gain confirmed by volume", Bullish: true, Delta: 18,
		When: func(f *Features) bool { return f.Return10 > 0.05 && f.VolumeRatio > 1.2 }},
	{Name: "positive_momentum", Tag: "positive 10-day return with MACD above zero", Bullish: true, Delta: 8,
		When: func(f *Features) bool { return f.Return10 > 0 && f.Set.MACD > 0 }},
	{Name: "negative_momentum", Tag: "10-day loss beyond 5%", Bullish: false, Delta: -15,
		When: func(f *Features) bool { return f.Return10 < -0.05 }},
}

var accumulationRules = []Rule{
	{Name: "up_volume_dominance", Tag: "higher volume on up days", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.UpDaysOnly || (f.UpDownDefined && f.UpDownVolume > 1.2) }},
	{Name: "down_volume_dominance", Tag: "higher volume on down days", Bullish: false, Delta: -15,
		When: func(f *Features) bool { return f.DownDaysOnly || (f.UpDownDefined && f.UpDownVolume < 1/1.2) }},
	{Name: "stealth_accumulation_cluster", Tag: "repeated heavy volume without price impact", Bullish: true, Delta: 25,
		When: func(f *Features) bool { return f.StealthDays >= 2 }},
	{Name: "distribution_cluster", Tag: "repeated heavy-volume declines", Bullish: false, Delta: -20,
		When: func(f *Features) bool { return f.DistributionDays >= 3 }},
}

var smartMoneyRules = []Rule{
	{Name: "buying_on_weakness", Tag: "heavy buying into declines", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.WeaknessBuyDays >= 2 }},
	{Name: "institutional_buying", Tag: "institutional volume cluster, net buying", Bullish: true, Delta: 15,
		When: func(f *Features) bool { return f.InstitutionalDays >= 3 && f.InstitutionalNet > 0 }},
	{Name: "institutional_selling", Tag: "institutional volume cluster, net selling", Bullish: false, Delta: -15,
		When: func(f *Features) bool { return f.InstitutionalDays >= 3 && f.InstitutionalNet < 0 }},
	{Name: "selling_on_strength", Tag: "heavy selling into rallies", Bullish: false, Delta: -10,
		When: func(f *Features) bool { return f.StrengthSellDays >= 2 }},
}

// Components returns the five scoring components in composite order.
func Components() []Component {
	return []Component{
		{Name: ComponentVolume, Rules: volumeRules},
		{Name: ComponentPriceAction, Rules: priceActionRules},
		{Name: ComponentMomentum, Rules: momentumRules},
		{Name: ComponentAccumulation, Rules: accumulationRules},
		{Name: ComponentSmartMoney, Rules: smartMoneyRules},
	}
}

func (w Weights) of(component string) float64 {
	switch component {
	case ComponentVolume:
		return w.Volume
	case ComponentPriceAction:
		return w.PriceAction
	case ComponentMomentum:
		return w.Momentum
	case ComponentAccumulation:
		return w.Accumulation
	case ComponentSmartMoney:
		return w.SmartMoney
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
