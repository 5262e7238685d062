package indicators

import (
	"math"
	"testing"

	"vnEquityBot/internal/domain"
)

func TestRSI(t *testing.T) {
	tests := []struct {
		name          string
		closes        []float64
		period        int
		expectedValue float64
		expectValid   bool
	}{
		{
			name:          "Mixed changes",
			closes:        []float64{100.0, 102.0, 101.0, 103.0, 102.0, 104.0}, // +2 -1 +2 -1 +2
			period:        3,
			expectedValue: 80.0, // gains 4/3, losses 1/3
			expectValid:   true,
		},
		{
			name:        "Insufficient data",
			closes:      []float64{100, 101, 102},
			period:      7,
			expectValid: false,
		},
		{
			name:          "All gains",
			closes:        []float64{100.0, 102.0, 104.0, 106.0},
			period:        3,
			expectedValue: 100.0,
			expectValid:   true,
		},
		{
			name:          "All losses",
			closes:        []float64{106.0, 104.0, 102.0, 100.0},
			period:        3,
			expectedValue: 0.0,
			expectValid:   true,
		},
		{
			name:          "Flat market",
			closes:        []float64{50, 50, 50, 50, 50},
			period:        3,
			expectedValue: 100.0, // zero mean loss
			expectValid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := RSI(tt.closes, tt.period).Last()
			if ok != tt.expectValid {
				t.Fatalf("Expected valid=%v, got %v", tt.expectValid, ok)
			}
			if ok && math.Abs(value-tt.expectedValue) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestATRAndOBV(t *testing.T) {
	bars := []domain.Bar{
		{Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Open: 10, High: 12, Low: 10, Close: 11, Volume: 200}, // TR 2
		{Open: 11, High: 11, Low: 8, Close: 9, Volume: 300},   // TR 3
		{Open: 9, High: 10, Low: 9, Close: 9, Volume: 400},    // TR 1
	}

	atr := ATR(bars, 3)
	if _, ok := atr.At(2); ok {
		t.Error("ATR needs a previous close for every true range in its window")
	}
	value, ok := atr.Last()
	if !ok || math.Abs(value-2.0) > 1e-9 {
		t.Errorf("Expected ATR 2.0, got %f (valid=%v)", value, ok)
	}

	obv := OBV(bars)
	want := []float64{0, 200, -100, -100}
	for i, w := range want {
		if got, _ := obv.At(i); got != w {
			t.Errorf("OBV[%d]: expected %f, got %f", i, w, got)
		}
	}
}
