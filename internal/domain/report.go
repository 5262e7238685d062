package domain

import "time"

// EquityPoint is the portfolio state recorded at the end of one simulated day.
type EquityPoint struct {
	Date           time.Time `json:"date"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	Equity         float64   `json:"equity"`
	Peak           float64   `json:"peak"`
	Drawdown       float64   `json:"drawdown"`
	OpenPositions  int       `json:"open_positions"`
}

// Diagnostic records a non-fatal problem. Repeats of the same kind, symbol and
// message are folded into one entry with a count and a date range.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Symbol    string         `json:"symbol,omitempty"`
	Message   string         `json:"message"`
	FirstDate time.Time      `json:"first_date"`
	LastDate  time.Time      `json:"last_date"`
	Count     int            `json:"count"`
}

// SignalAccuracy is the outcome of trades grouped by the classification that opened them.
type SignalAccuracy struct {
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	AvgReturn float64 `json:"avg_return"`
}

// DrawdownPeriod is one peak-to-recovery episode of the equity curve.
type DrawdownPeriod struct {
	Start     time.Time `json:"start"`
	Trough    time.Time `json:"trough"`
	End       time.Time `json:"end"` // zero when not recovered by the end of the run
	Depth     float64   `json:"depth"`
	Days      int       `json:"days"`
	Recovered bool      `json:"recovered"`
}

// PerformanceReport is the final output of a backtest run.
type PerformanceReport struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TradingDays    int       `json:"trading_days"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`

	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`

	TotalTrades          int      `json:"total_trades"`
	WinningTrades        int      `json:"winning_trades"`
	LosingTrades         int      `json:"losing_trades"`
	WinRate              float64  `json:"win_rate"`
	ProfitFactor         *float64 `json:"profit_factor"` // nil when undefined (no losing trades)
	ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
	AverageWin           float64  `json:"average_win"`
	AverageLoss          float64  `json:"average_loss"`
	Expectancy           float64  `json:"expectancy"`
	MaxConsecutiveWins   int      `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int      `json:"max_consecutive_losses"`
	AverageHoldingDays   float64  `json:"average_holding_days"`
	TotalCosts           float64  `json:"total_costs"`

	SignalAccuracy map[Classification]SignalAccuracy `json:"signal_accuracy"`
	ExitReasons    map[ExitReason]int                `json:"exit_reasons"`
	MonthlyReturns map[string]float64                `json:"monthly_returns"`
	Drawdowns      []DrawdownPeriod                  `json:"drawdowns"`
	Diagnostics    []Diagnostic                      `json:"diagnostics"`
}
