package risk

import (
	"math"
	"sort"

	"vnEquityBot/internal/domain"
)

const (
	tradingDaysPerYear = 252
	minReturns         = 10
)

// AnnualizedVolatility is the sample standard deviation of the last window daily
// returns scaled by sqrt(252). With fewer than ten returns or a flat series it returns
// fallback and degenerate=true.
func AnnualizedVolatility(bars []domain.Bar, window int, fallback float64) (vol float64, degenerate bool) {
	start := len(bars) - window - 1
	if start < 0 {
		start = 0
	}
	var returns []float64
	for i := start + 1; i < len(bars); i++ {
		if bars[i-1].Close <= 0 {
			continue
		}
		returns = append(returns, bars[i].Close/bars[i-1].Close-1)
	}
	if len(returns) < minReturns {
		return fallback, true
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	vol = math.Sqrt(ss/float64(len(returns)-1)) * math.Sqrt(tradingDaysPerYear)
	if vol == 0 || math.IsNaN(vol) {
		return fallback, true
	}
	return vol, false
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
