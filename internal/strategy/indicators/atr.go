package indicators

import (
	"math"

	"vnEquityBot/internal/domain"
)

// TrueRange returns the true range of each bar. The first bar has no previous close,
// so the series starts at index 1.
func TrueRange(bars []domain.Bar) Series {
	s := newSeries(len(bars), 1)
	for i := 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. |Current High - Previous Close|
		// 3. |Current Low - Previous Close|
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)

		s.Values[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return s
}

// ATR computes the Average True Range as the rolling mean of the true range.
func ATR(bars []domain.Bar, period int) Series {
	tr := TrueRange(bars)
	s := newSeries(len(bars), period)
	if period <= 0 {
		s.Start = len(bars)
		return s
	}
	for i := s.Start; i < len(bars); i++ {
		s.Values[i] = mean(tr.Values[i-period+1 : i+1])
	}
	return s
}
