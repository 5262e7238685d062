package domain

import (
	"fmt"
	"time"
)

// Bar represents one trading day for a symbol.
type Bar struct {
	Symbol string    // Ticker on HOSE/HNX/UPCoM (e.g., "VNM")
	Date   time.Time // Trading date, normalized to 00:00 UTC
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBars checks that a bar series is strictly ascending by date, duplicate-free
// and carries sane prices. It returns the first violation found.
func ValidateBars(symbol string, bars []Bar) error {
	for i, b := range bars {
		if b.Close <= 0 || b.Open <= 0 {
			return fmt.Errorf("%s bar %d (%s): non-positive price", symbol, i, b.Date.Format("2006-01-02"))
		}
		if b.High < b.Low {
			return fmt.Errorf("%s bar %d (%s): high %.2f below low %.2f", symbol, i, b.Date.Format("2006-01-02"), b.High, b.Low)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%s bar %d (%s): negative volume", symbol, i, b.Date.Format("2006-01-02"))
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1].Date
		if b.Date.Equal(prev) {
			return fmt.Errorf("%s bar %d: duplicate date %s", symbol, i, b.Date.Format("2006-01-02"))
		}
		if b.Date.Before(prev) {
			return fmt.Errorf("%s bar %d: date %s not after %s", symbol, i, b.Date.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
	}
	return nil
}
