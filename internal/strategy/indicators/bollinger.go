package indicators

// BollingerBands holds the three band lines.
type BollingerBands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// Bollinger computes SMA(period) plus and minus k sample standard deviations.
func Bollinger(closes []float64, period int, k float64) BollingerBands {
	middle := SMA(closes, period)
	sd := StdDev(closes, period)
	upper := newSeries(len(closes), middle.Start)
	lower := newSeries(len(closes), middle.Start)
	for i := middle.Start; i < len(closes); i++ {
		upper.Values[i] = middle.Values[i] + k*sd.Values[i]
		lower.Values[i] = middle.Values[i] - k*sd.Values[i]
	}
	return BollingerBands{Upper: upper, Middle: middle, Lower: lower}
}
