package domain

import "time"

// BacktestRun bundles everything a completed backtest produced.
type BacktestRun struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Symbols     []string          `json:"symbols"`
	Config      map[string]any    `json:"config"`
	Report      PerformanceReport `json:"report"`
	Trades      []*Trade          `json:"trades"`
	EquityCurve []EquityPoint     `json:"equity_curve"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Symbols     []string  `json:"symbols"`
	TotalReturn float64   `json:"total_return"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TotalTrades int       `json:"total_trades"`
}
