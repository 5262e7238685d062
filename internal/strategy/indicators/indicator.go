package indicators

import "math"

// Series is an indicator line aligned with its input: Values[i] belongs to input i.
// Entries before Start are warm-up and carry no value.
type Series struct {
	Values []float64
	Start  int
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < s.Start || i < 0 || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], true
}

// Last returns the final value of the series.
func (s Series) Last() (float64, bool) {
	return s.At(len(s.Values) - 1)
}

// Valid reports whether the series has any defined value.
func (s Series) Valid() bool {
	return s.Start < len(s.Values)
}

func newSeries(n, start int) Series {
	if start > n {
		start = n
	}
	return Series{Values: make([]float64, n), Start: start}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// sampleStdDev uses the n-1 denominator.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
