package optimization

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/risk"
	"vnEquityBot/internal/strategy/analytics"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/indicators"
	"vnEquityBot/internal/strategy/signals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func baseConfig() BaseConfig {
	bt := backtesting.DefaultBacktestConfig()
	return BaseConfig{
		Indicators: indicators.DefaultConfig(),
		Signals:    signals.DefaultConfig(),
		Risk:       risk.DefaultRiskConfig(),
		Backtest:   bt,
		Analyzer:   analytics.DefaultAnalyzerConfig(bt.InitialCapital),
	}
}

// waveBars oscillates around a rising trend so that signals fire in both directions.
func waveBars(symbol string, n int, phase float64) []domain.Bar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		x := float64(i)
		close := 20000 * (1 + 0.002*x + 0.06*math.Sin(x/6+phase))
		vol := 400000 * (1.2 + math.Cos(x/4+phase))
		bars[i] = domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   close * 0.998,
			High:   close * 1.01,
			Low:    close * 0.99,
			Close:  close,
			Volume: vol,
		}
	}
	return bars
}

func TestGenerateParameterCombinations(t *testing.T) {
	optimizer, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamHoldingPeriodMax, Min: 10, Max: 20, Step: 10, IsInt: true},
			{Name: ParamStopMultiplier, Min: 1.5, Max: 2.1, Step: 0.3},
		},
		Base: baseConfig(),
	}, nopLogger{})
	require.NoError(t, err)

	combinations := optimizer.generateParameterCombinations()
	require.Len(t, combinations, 6)
	assert.Equal(t, map[string]float64{ParamHoldingPeriodMax: 10, ParamStopMultiplier: 1.5}, combinations[0])
	assert.Equal(t, map[string]float64{ParamHoldingPeriodMax: 10, ParamStopMultiplier: 1.8}, combinations[1])
	assert.Equal(t, map[string]float64{ParamHoldingPeriodMax: 20, ParamStopMultiplier: 2.1}, combinations[5])

	defaults, err := NewOptimizer(OptimizerConfig{Base: baseConfig()}, nopLogger{})
	require.NoError(t, err)
	assert.Len(t, defaults.generateParameterCombinations(), 108)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("max_positions=5:10:5")
	require.NoError(t, err)
	assert.Equal(t, ParameterRange{Name: ParamMaxPositions, Min: 5, Max: 10, Step: 5, IsInt: true}, r)

	r, err = ParseRange(" stop_multiplier = 1.5:2.5:0.5")
	require.NoError(t, err)
	assert.False(t, r.IsInt)

	for _, bad := range []string{"buy_threshold", "buy_threshold=1:2", "foo=1:2:1", "buy_threshold=60:55:1", "buy_threshold=55:60:0", "buy_threshold=a:b:c"} {
		_, err := ParseRange(bad)
		assert.True(t, errors.Is(err, ports.ErrInvalidConfiguration), bad)
	}
}

func TestApplyParams(t *testing.T) {
	cfg, err := applyParams(baseConfig(), map[string]float64{
		ParamBuyThreshold:     62,
		ParamSellThreshold:    35,
		ParamMaxPositions:     3,
		ParamHoldingPeriodMax: 12,
		ParamStopMultiplier:   2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 62.0, cfg.Signals.Thresholds.Buy)
	assert.Equal(t, cfg.Signals.Thresholds, cfg.Backtest.Thresholds)
	assert.Equal(t, 3, cfg.Backtest.MaxPositions)
	assert.Equal(t, 12, cfg.Backtest.HoldingPeriodMax)
	assert.Equal(t, 2.5, cfg.Risk.StopMultiplier)
	assert.Equal(t, 1, cfg.Backtest.Workers)

	_, err = applyParams(baseConfig(), map[string]float64{ParamBuyThreshold: 50})
	assert.True(t, errors.Is(err, ports.ErrInvalidConfiguration), "buy below weak buy")

	_, err = applyParams(baseConfig(), map[string]float64{"leverage": 2})
	assert.True(t, errors.Is(err, ports.ErrInvalidConfiguration))
}

func TestOptimizer_Optimize(t *testing.T) {
	bars := map[string][]domain.Bar{
		"FPT": waveBars("FPT", 160, 0),
		"VNM": waveBars("VNM", 160, 1.5),
	}
	optimizer, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			// 50 sits below the weak-buy threshold and is skipped
			{Name: ParamBuyThreshold, Min: 50, Max: 60, Step: 5},
			{Name: ParamMaxPositions, Min: 1, Max: 2, Step: 1, IsInt: true},
		},
		Base:        baseConfig(),
		Concurrency: 3,
	}, nopLogger{})
	require.NoError(t, err)

	results, err := optimizer.Optimize(context.Background(), bars)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be sorted by score")
	}
	for _, r := range results {
		assert.NotEqual(t, 50.0, r.Parameters[ParamBuyThreshold])
		assert.Equal(t, r.Report.SharpeRatio, r.Score)
		assert.Equal(t, 160, r.Report.TradingDays)
	}

	again, err := optimizer.Optimize(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, results, again, "optimization must be deterministic")
}

func TestOptimizer_Errors(t *testing.T) {
	_, err := NewOptimizer(OptimizerConfig{ParameterRanges: []ParameterRange{{Name: "nope", Min: 1, Max: 2, Step: 1}}}, nopLogger{})
	assert.True(t, errors.Is(err, ports.ErrInvalidConfiguration))

	_, err = NewOptimizer(OptimizerConfig{}, nil)
	assert.Error(t, err)

	optimizer, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: ParamMaxPositions, Min: 1, Max: 2, Step: 1, IsInt: true}},
		Base:            baseConfig(),
	}, nopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = optimizer.Optimize(ctx, map[string][]domain.Bar{"FPT": waveBars("FPT", 80, 0)})
	assert.True(t, errors.Is(err, ports.ErrContextCanceled), "got %v", err)

	_, err = optimizer.Optimize(context.Background(), map[string][]domain.Bar{})
	assert.True(t, errors.Is(err, ports.ErrInvalidBars), "got %v", err)
}
