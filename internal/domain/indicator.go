package domain

import "time"

// IndicatorSet holds the technical indicators derived for one symbol at one date.
// Valid is false until every lookback window is filled; callers must not read the
// numeric fields of an invalid set.
type IndicatorSet struct {
	Date  time.Time
	Valid bool

	SMA10 float64
	SMA20 float64
	EMA10 float64
	EMA12 float64
	EMA20 float64
	EMA26 float64

	RSI        float64
	MACD       float64
	MACDSignal float64
	ATR        float64
	OBV        float64

	BollingerUpper  float64
	BollingerMiddle float64
	BollingerLower  float64

	VolumeSMA20 float64
}
