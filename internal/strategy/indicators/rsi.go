package indicators

// RSI computes the Relative Strength Index over period price changes using a rolling
// mean of gains and of losses. When the mean loss is zero (including a flat window)
// the RSI is 100.
func RSI(closes []float64, period int) Series {
	s := newSeries(len(closes), period)
	if period <= 0 {
		s.Start = len(closes)
		return s
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := s.Start; i < len(closes); i++ {
		avgGain := mean(gains[i-period+1 : i+1])
		avgLoss := mean(losses[i-period+1 : i+1])
		if avgLoss == 0 {
			s.Values[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		rsi := 100 - (100 / (1 + rs))
		if rsi > 100 {
			rsi = 100
		} else if rsi < 0 {
			rsi = 0
		}
		s.Values[i] = rsi
	}
	return s
}
