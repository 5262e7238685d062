package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnEquityBot/internal/domain"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleCurve() []domain.EquityPoint {
	return []domain.EquityPoint{
		{Date: date(1, 30), Equity: 1010},
		{Date: date(1, 31), Equity: 990},
		{Date: date(2, 1), Equity: 1020},
		{Date: date(2, 2), Equity: 1000},
	}
}

func sampleTrades() []*domain.Trade {
	return []*domain.Trade{
		{PositionID: 3, Symbol: "MWG", ExitDate: date(2, 1), NetPnL: -50, Cost: 4, ReturnPct: -0.05, HoldingDays: 6,
			ExitReason: domain.ExitStopLoss, EntryClassification: domain.Buy},
		{PositionID: 1, Symbol: "FPT", ExitDate: date(1, 30), NetPnL: 100, Cost: 5, ReturnPct: 0.1, Win: true, HoldingDays: 4,
			ExitReason: domain.ExitTakeProfit, EntryClassification: domain.Buy},
		{PositionID: 2, Symbol: "VNM", ExitDate: date(1, 31), NetPnL: 30, Cost: 3, ReturnPct: 0.03, Win: true, HoldingDays: 2,
			ExitReason: domain.ExitSignal, EntryClassification: domain.StrongBuy},
	}
}

func TestAnalyzePerformance(t *testing.T) {
	r := AnalyzePerformance(sampleCurve(), sampleTrades(), nil, DefaultAnalyzerConfig(1000))

	assert.Equal(t, date(1, 30), r.StartDate)
	assert.Equal(t, date(2, 2), r.EndDate)
	assert.Equal(t, 4, r.TradingDays)
	assert.Equal(t, 1000.0, r.FinalEquity)
	assert.InDelta(t, 0, r.TotalReturn, 1e-12)
	assert.InDelta(t, 0, r.AnnualizedReturn, 1e-12)
	assert.Greater(t, r.Volatility, 0.0)
	assert.InDelta(t, -0.06/r.Volatility, r.SharpeRatio, 1e-12)
	assert.InDelta(t, 20.0/1010.0, r.MaxDrawdown, 1e-12)

	assert.Equal(t, 3, r.TotalTrades)
	assert.Equal(t, 2, r.WinningTrades)
	assert.Equal(t, 1, r.LosingTrades)
	assert.InDelta(t, 2.0/3.0, r.WinRate, 1e-12)
	require.NotNil(t, r.ProfitFactor)
	assert.InDelta(t, 2.6, *r.ProfitFactor, 1e-12)
	assert.False(t, r.ProfitFactorInfinite)
	assert.InDelta(t, 65.0, r.AverageWin, 1e-12)
	assert.InDelta(t, -50.0, r.AverageLoss, 1e-12)
	assert.InDelta(t, 80.0/3.0, r.Expectancy, 1e-9)
	assert.Equal(t, 2, r.MaxConsecutiveWins)
	assert.Equal(t, 1, r.MaxConsecutiveLosses)
	assert.InDelta(t, 4.0, r.AverageHoldingDays, 1e-12)
	assert.InDelta(t, 12.0, r.TotalCosts, 1e-12)

	assert.Equal(t, map[domain.ExitReason]int{
		domain.ExitStopLoss: 1, domain.ExitTakeProfit: 1, domain.ExitSignal: 1,
	}, r.ExitReasons)

	buy := r.SignalAccuracy[domain.Buy]
	assert.Equal(t, 2, buy.Trades)
	assert.Equal(t, 1, buy.Wins)
	assert.InDelta(t, 0.5, buy.WinRate, 1e-12)
	assert.InDelta(t, 0.025, buy.AvgReturn, 1e-12)
	assert.Equal(t, 1, r.SignalAccuracy[domain.StrongBuy].Trades)

	assert.InDelta(t, -0.01, r.MonthlyReturns["2024-01"], 1e-12)
	assert.InDelta(t, 1000.0/990.0-1, r.MonthlyReturns["2024-02"], 1e-12)

	require.Len(t, r.Drawdowns, 2)
	assert.True(t, r.Drawdowns[0].Recovered)
	assert.Equal(t, date(1, 31), r.Drawdowns[0].Start)
	assert.Equal(t, date(2, 1), r.Drawdowns[0].End)
	assert.Equal(t, 1, r.Drawdowns[0].Days)
	assert.False(t, r.Drawdowns[1].Recovered)
	assert.True(t, r.Drawdowns[1].End.IsZero())
}

func TestAnalyzePerformanceEmptyRun(t *testing.T) {
	r := AnalyzePerformance(nil, nil, nil, DefaultAnalyzerConfig(5e8))

	assert.Equal(t, 5e8, r.FinalEquity)
	assert.Zero(t, r.TotalTrades)
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.SharpeRatio)
	assert.Nil(t, r.ProfitFactor)
	assert.False(t, r.ProfitFactorInfinite)
	assert.Empty(t, r.Diagnostics)

	_, err := json.Marshal(r)
	assert.NoError(t, err)
}

func TestAnalyzePerformanceFlatCurve(t *testing.T) {
	curve := []domain.EquityPoint{
		{Date: date(3, 1), Equity: 1000},
		{Date: date(3, 4), Equity: 1000},
		{Date: date(3, 5), Equity: 1000},
	}
	existing := []domain.Diagnostic{{Kind: domain.DiagDataInsufficient, Symbol: "VNM", Message: "warm-up", Count: 3}}

	r := AnalyzePerformance(curve, nil, existing, DefaultAnalyzerConfig(1000))

	assert.Zero(t, r.Volatility)
	assert.Zero(t, r.SharpeRatio)
	assert.Zero(t, r.MaxDrawdown)
	require.Len(t, r.Diagnostics, 2)
	assert.Equal(t, existing[0], r.Diagnostics[0])
	assert.Equal(t, domain.DiagNumericDegenerate, r.Diagnostics[1].Kind)
	assert.Len(t, existing, 1, "input diagnostics are not modified")
}

func TestAnalyzePerformanceNoLosers(t *testing.T) {
	trades := []*domain.Trade{
		{PositionID: 1, ExitDate: date(1, 5), NetPnL: 10, Win: true, EntryClassification: domain.Buy},
		{PositionID: 2, ExitDate: date(1, 6), NetPnL: 20, Win: true, EntryClassification: domain.Buy},
	}
	r := AnalyzePerformance(nil, trades, nil, DefaultAnalyzerConfig(1000))

	assert.Nil(t, r.ProfitFactor)
	assert.True(t, r.ProfitFactorInfinite)
	assert.Equal(t, 1.0, r.WinRate)
	assert.Equal(t, 2, r.MaxConsecutiveWins)
}

func TestPerformanceReportJSONRoundTrip(t *testing.T) {
	diags := []domain.Diagnostic{{
		Kind: domain.DiagConstraintViolation, Symbol: "BBB", Message: "max positions reached",
		FirstDate: date(1, 30), LastDate: date(2, 1), Count: 2,
	}}
	original := AnalyzePerformance(sampleCurve(), sampleTrades(), diags, DefaultAnalyzerConfig(1000))

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded domain.PerformanceReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)

	for _, v := range []float64{decoded.SharpeRatio, decoded.Volatility, decoded.AnnualizedReturn} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestSummary(t *testing.T) {
	r := AnalyzePerformance(sampleCurve(), sampleTrades(), nil, DefaultAnalyzerConfig(1000))
	assert.Contains(t, Summary(r), "profit factor 2.60")
	assert.Contains(t, Summary(r), "trades 3")
}
