package indicators

import "vnEquityBot/internal/domain"

// OBV computes On-Balance Volume. OBV[0] is zero; each later bar adds its volume on
// an up close and subtracts it on a down close.
func OBV(bars []domain.Bar) Series {
	s := newSeries(len(bars), 0)
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			s.Values[i] = s.Values[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			s.Values[i] = s.Values[i-1] - bars[i].Volume
		default:
			s.Values[i] = s.Values[i-1]
		}
	}
	return s
}
