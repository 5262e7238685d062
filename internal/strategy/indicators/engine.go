package indicators

import (
	"fmt"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

// Config holds the indicator periods used by the Engine.
type Config struct {
	MinLookback int // Bars required before a set is valid

	SMAShort     int
	SMALong      int
	EMAShort     int
	EMALong      int
	RSIPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	ATRPeriod    int
	BBPeriod     int
	BBStdDev     float64
	VolumePeriod int
}

// DefaultConfig returns the standard daily-bar indicator periods.
func DefaultConfig() Config {
	return Config{
		MinLookback:  50,
		SMAShort:     10,
		SMALong:      20,
		EMAShort:     10,
		EMALong:      20,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		ATRPeriod:    14,
		BBPeriod:     20,
		BBStdDev:     2.0,
		VolumePeriod: 20,
	}
}

// warmup is the number of bars the slowest indicator needs before its first value.
func (c Config) warmup() int {
	need := []int{
		c.SMAShort, c.SMALong, c.EMAShort, c.EMALong, c.BBPeriod, c.VolumePeriod,
		c.RSIPeriod + 1, c.ATRPeriod + 1,
		c.MACDSlow + c.MACDSignal - 1, c.MACDFast + c.MACDSignal - 1,
	}
	max := 0
	for _, n := range need {
		if n > max {
			max = n
		}
	}
	return max
}

// Validate checks that every period is positive and the lookback covers all of them.
func (c Config) Validate() error {
	periods := map[string]int{
		"sma_short": c.SMAShort, "sma_long": c.SMALong, "ema_short": c.EMAShort,
		"ema_long": c.EMALong, "rsi": c.RSIPeriod, "macd_fast": c.MACDFast,
		"macd_slow": c.MACDSlow, "macd_signal": c.MACDSignal, "atr": c.ATRPeriod,
		"volume": c.VolumePeriod,
	}
	for name, p := range periods {
		if p <= 0 {
			return fmt.Errorf("%w: indicator period %s must be positive, got %d", ports.ErrInvalidConfiguration, name, p)
		}
	}
	if c.BBPeriod < 2 {
		return fmt.Errorf("%w: bollinger period must be at least 2, got %d", ports.ErrInvalidConfiguration, c.BBPeriod)
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("%w: macd fast period %d must be below slow period %d", ports.ErrInvalidConfiguration, c.MACDFast, c.MACDSlow)
	}
	if c.MinLookback < c.warmup() {
		return fmt.Errorf("%w: min lookback %d is shorter than indicator warm-up %d", ports.ErrInvalidConfiguration, c.MinLookback, c.warmup())
	}
	return nil
}

// Engine derives IndicatorSets from daily bars. Every value at index i depends only on
// bars[0..i].
type Engine struct {
	config Config
}

// NewEngine creates an indicator engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: cfg}, nil
}

// MinLookback returns how many bars are required for a valid set.
func (e *Engine) MinLookback() int {
	return e.config.MinLookback
}

// Compute returns the indicator set at the last bar.
func (e *Engine) Compute(bars []domain.Bar) (domain.IndicatorSet, error) {
	if len(bars) < e.config.MinLookback {
		return domain.IndicatorSet{}, fmt.Errorf("%w: have %d bars, need %d", ports.ErrDataInsufficient, len(bars), e.config.MinLookback)
	}
	sets := e.Series(bars)
	return sets[len(sets)-1], nil
}

// Series returns one set per bar. Sets before index MinLookback-1 are not Valid.
func (e *Engine) Series(bars []domain.Bar) []domain.IndicatorSet {
	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	c := e.config
	sma10 := SMA(closes, c.SMAShort)
	sma20 := SMA(closes, c.SMALong)
	ema10 := EMA(closes, c.EMAShort)
	ema12 := EMA(closes, c.MACDFast)
	ema20 := EMA(closes, c.EMALong)
	ema26 := EMA(closes, c.MACDSlow)
	rsi := RSI(closes, c.RSIPeriod)
	macd := MACD(closes, c.MACDFast, c.MACDSlow, c.MACDSignal)
	atr := ATR(bars, c.ATRPeriod)
	obv := OBV(bars)
	bb := Bollinger(closes, c.BBPeriod, c.BBStdDev)
	volSMA := SMA(volumes, c.VolumePeriod)

	sets := make([]domain.IndicatorSet, n)
	for i := range bars {
		sets[i].Date = bars[i].Date
		if i < c.MinLookback-1 {
			continue
		}
		sets[i] = domain.IndicatorSet{
			Date:            bars[i].Date,
			Valid:           true,
			SMA10:           sma10.Values[i],
			SMA20:           sma20.Values[i],
			EMA10:           ema10.Values[i],
			EMA12:           ema12.Values[i],
			EMA20:           ema20.Values[i],
			EMA26:           ema26.Values[i],
			RSI:             rsi.Values[i],
			MACD:            macd.MACD.Values[i],
			MACDSignal:      macd.Signal.Values[i],
			ATR:             atr.Values[i],
			OBV:             obv.Values[i],
			BollingerUpper:  bb.Upper.Values[i],
			BollingerMiddle: bb.Middle.Values[i],
			BollingerLower:  bb.Lower.Values[i],
			VolumeSMA20:     volSMA.Values[i],
		}
	}
	return sets
}
