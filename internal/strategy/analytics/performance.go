package analytics

import (
	"fmt"
	"math"
	"sort"

	"vnEquityBot/internal/domain"
)

// AnalyzerConfig holds the inputs of the performance analysis that do not come from
// the simulation itself.
type AnalyzerConfig struct {
	InitialCapital     float64
	RiskFreeRate       float64 // Annual
	TradingDaysPerYear float64
}

// DefaultAnalyzerConfig uses a 6% risk-free rate and 252 trading days.
func DefaultAnalyzerConfig(initialCapital float64) AnalyzerConfig {
	return AnalyzerConfig{
		InitialCapital:     initialCapital,
		RiskFreeRate:       0.06,
		TradingDaysPerYear: 252,
	}
}

// AnalyzePerformance builds the performance report from the equity curve and the
// closed trades. It never fails: an empty run yields a zeroed report, and undefined
// ratios are reported as zero or nil with a diagnostic.
func AnalyzePerformance(curve []domain.EquityPoint, trades []*domain.Trade, diagnostics []domain.Diagnostic, cfg AnalyzerConfig) domain.PerformanceReport {
	report := domain.PerformanceReport{
		InitialCapital: cfg.InitialCapital,
		FinalEquity:    cfg.InitialCapital,
		TradingDays:    len(curve),
		SignalAccuracy: make(map[domain.Classification]domain.SignalAccuracy),
		ExitReasons:    make(map[domain.ExitReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]domain.DrawdownPeriod, 0),
		Diagnostics:    append(make([]domain.Diagnostic, 0, len(diagnostics)), diagnostics...),
	}
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = 252
	}

	if len(curve) > 0 && cfg.InitialCapital > 0 {
		report.StartDate = curve[0].Date
		report.EndDate = curve[len(curve)-1].Date
		report.FinalEquity = curve[len(curve)-1].Equity
		analyzeCurve(&report, curve, cfg)
	}
	analyzeTrades(&report, trades)
	return report
}

func analyzeCurve(report *domain.PerformanceReport, curve []domain.EquityPoint, cfg AnalyzerConfig) {
	report.TotalReturn = finite(report.FinalEquity/cfg.InitialCapital - 1)

	returns := dailyReturns(curve, cfg.InitialCapital)
	days := float64(len(returns))
	if growth := 1 + report.TotalReturn; growth > 0 {
		report.AnnualizedReturn = finite(math.Pow(growth, cfg.TradingDaysPerYear/days) - 1)
	} else {
		report.AnnualizedReturn = -1
	}

	report.Volatility = finite(sampleStdDev(returns) * math.Sqrt(cfg.TradingDaysPerYear))
	if report.Volatility > 0 {
		report.SharpeRatio = finite((report.AnnualizedReturn - cfg.RiskFreeRate) / report.Volatility)
	} else {
		report.Diagnostics = append(report.Diagnostics, domain.Diagnostic{
			Kind:      domain.DiagNumericDegenerate,
			Message:   "zero return volatility, sharpe ratio reported as 0",
			FirstDate: report.StartDate,
			LastDate:  report.EndDate,
			Count:     1,
		})
	}

	report.MaxDrawdown, report.Drawdowns = drawdowns(curve, cfg.InitialCapital)
	report.MonthlyReturns = monthlyReturns(curve, cfg.InitialCapital)
}

// dailyReturns includes the first day's return against the initial capital.
func dailyReturns(curve []domain.EquityPoint, initial float64) []float64 {
	returns := make([]float64, 0, len(curve))
	prev := initial
	for _, p := range curve {
		r := 0.0
		if prev > 0 {
			r = p.Equity/prev - 1
		}
		returns = append(returns, r)
		prev = p.Equity
	}
	return returns
}

func drawdowns(curve []domain.EquityPoint, initial float64) (float64, []domain.DrawdownPeriod) {
	periods := make([]domain.DrawdownPeriod, 0)
	peak := initial
	maxDD := 0.0
	var current *domain.DrawdownPeriod
	troughEquity := 0.0

	for _, p := range curve {
		if p.Equity >= peak {
			peak = p.Equity
			if current != nil {
				current.End = p.Date
				current.Recovered = true
				periods = append(periods, *current)
				current = nil
			}
			continue
		}

		dd := (peak - p.Equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
		if current == nil {
			current = &domain.DrawdownPeriod{Start: p.Date, Trough: p.Date, Depth: dd}
			troughEquity = p.Equity
		}
		current.Days++
		if p.Equity < troughEquity {
			troughEquity = p.Equity
			current.Trough = p.Date
			current.Depth = dd
		}
	}
	if current != nil {
		periods = append(periods, *current)
	}
	return finite(maxDD), periods
}

// monthlyReturns compares each month's last equity with the previous month's.
func monthlyReturns(curve []domain.EquityPoint, initial float64) map[string]float64 {
	out := make(map[string]float64)
	prevClose := initial
	for i, p := range curve {
		month := p.Date.Format("2006-01")
		lastOfMonth := i == len(curve)-1 || curve[i+1].Date.Format("2006-01") != month
		if !lastOfMonth {
			continue
		}
		if prevClose > 0 {
			out[month] = finite(p.Equity/prevClose - 1)
		}
		prevClose = p.Equity
	}
	return out
}

func analyzeTrades(report *domain.PerformanceReport, trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}

	// Sort by exit so streaks follow realization order
	ordered := append([]*domain.Trade(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExitDate.Equal(ordered[j].ExitDate) {
			return ordered[i].ExitDate.Before(ordered[j].ExitDate)
		}
		return ordered[i].PositionID < ordered[j].PositionID
	})

	var grossWin, grossLoss, holding float64
	var consecutiveWins, consecutiveLosses int
	type bucket struct {
		trades, wins int
		returns      float64
	}
	buckets := make(map[domain.Classification]*bucket)

	for _, trade := range ordered {
		report.TotalTrades++
		report.TotalCosts += trade.Cost
		report.ExitReasons[trade.ExitReason]++
		holding += float64(trade.HoldingDays)

		if trade.Win {
			report.WinningTrades++
			grossWin += trade.NetPnL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			report.LosingTrades++
			grossLoss += trade.NetPnL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > report.MaxConsecutiveWins {
			report.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > report.MaxConsecutiveLosses {
			report.MaxConsecutiveLosses = consecutiveLosses
		}

		b, ok := buckets[trade.EntryClassification]
		if !ok {
			b = &bucket{}
			buckets[trade.EntryClassification] = b
		}
		b.trades++
		b.returns += trade.ReturnPct
		if trade.Win {
			b.wins++
		}
	}

	n := float64(report.TotalTrades)
	report.WinRate = float64(report.WinningTrades) / n
	report.AverageHoldingDays = holding / n
	if report.WinningTrades > 0 {
		report.AverageWin = grossWin / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = grossLoss / float64(report.LosingTrades)
	}
	report.Expectancy = report.WinRate*report.AverageWin + (1-report.WinRate)*report.AverageLoss

	switch {
	case grossLoss < 0:
		pf := finite(grossWin / -grossLoss)
		report.ProfitFactor = &pf
	case grossWin > 0:
		report.ProfitFactorInfinite = true
	}

	for class, b := range buckets {
		report.SignalAccuracy[class] = domain.SignalAccuracy{
			Trades:    b.trades,
			Wins:      b.wins,
			WinRate:   float64(b.wins) / float64(b.trades),
			AvgReturn: b.returns / float64(b.trades),
		}
	}
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// finite maps NaN and infinities to 0 so reports always serialize.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Summary renders the headline numbers of a report on one line.
func Summary(r domain.PerformanceReport) string {
	pf := "n/a"
	switch {
	case r.ProfitFactor != nil:
		pf = fmt.Sprintf("%.2f", *r.ProfitFactor)
	case r.ProfitFactorInfinite:
		pf = "inf"
	}
	return fmt.Sprintf("return %.2f%% (ann. %.2f%%), sharpe %.2f, max drawdown %.2f%%, trades %d, win rate %.1f%%, profit factor %s",
		100*r.TotalReturn, 100*r.AnnualizedReturn, r.SharpeRatio, 100*r.MaxDrawdown, r.TotalTrades, 100*r.WinRate, pf)
}
