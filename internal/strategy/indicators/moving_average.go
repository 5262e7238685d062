package indicators

// SMA computes the simple moving average of values over period.
func SMA(values []float64, period int) Series {
	s := newSeries(len(values), period-1)
	if period <= 0 {
		s.Start = len(values)
		return s
	}
	for i := s.Start; i < len(values); i++ {
		s.Values[i] = mean(values[i-period+1 : i+1])
	}
	return s
}

// EMA computes the exponential moving average of values over period. The first value
// is the SMA of the first period values; after that the multiplier is 2/(period+1).
func EMA(values []float64, period int) Series {
	return emaFrom(values, 0, period)
}

// emaFrom runs the EMA over values[from:], leaving earlier entries undefined.
func emaFrom(values []float64, from, period int) Series {
	s := newSeries(len(values), from+period-1)
	if period <= 0 || from < 0 {
		s.Start = len(values)
		return s
	}
	if s.Start >= len(values) {
		return s
	}

	multiplier := 2.0 / float64(period+1)
	ema := mean(values[from : from+period])
	s.Values[s.Start] = ema
	for i := s.Start + 1; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		s.Values[i] = ema
	}
	return s
}

// StdDev computes the rolling sample standard deviation of values over period.
func StdDev(values []float64, period int) Series {
	s := newSeries(len(values), period-1)
	if period < 2 {
		s.Start = len(values)
		return s
	}
	for i := s.Start; i < len(values); i++ {
		s.Values[i] = sampleStdDev(values[i-period+1 : i+1])
	}
	return s
}
