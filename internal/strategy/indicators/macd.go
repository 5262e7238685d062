package indicators

// MACDResult holds the MACD line and its signal line.
type MACDResult struct {
	MACD   Series
	Signal Series
}

// MACD computes EMA(fast) - EMA(slow) and the EMA(signal) of that difference.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := newSeries(len(closes), slowEMA.Start)
	if fastEMA.Start > line.Start {
		line.Start = fastEMA.Start
	}
	for i := line.Start; i < len(closes); i++ {
		line.Values[i] = fastEMA.Values[i] - slowEMA.Values[i]
	}

	return MACDResult{
		MACD:   line,
		Signal: emaFrom(line.Values, line.Start, signal),
	}
}
