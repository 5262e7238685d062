package domain

// PositionStatus represents the lifecycle state of a simulated position.
type PositionStatus string

const (
	StatusPending PositionStatus = "pending"
	StatusOpen    PositionStatus = "open"
	StatusClosed  PositionStatus = "closed"
)

// ExitReason indicates which exit rule closed a position.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitSignal      ExitReason = "signal_exit"
	ExitMaxHolding  ExitReason = "max_holding"
	ExitLiquidation ExitReason = "liquidation"
)

// Classification is the discrete trading verdict derived from a composite score.
type Classification string

const (
	StrongBuy  Classification = "STRONG_BUY"
	Buy        Classification = "BUY"
	WeakBuy    Classification = "WEAK_BUY"
	Hold       Classification = "HOLD"
	WeakSell   Classification = "WEAK_SELL"
	Sell       Classification = "SELL"
	StrongSell Classification = "STRONG_SELL"
)

// Rank orders classifications from most bearish (0) to most bullish (6).
func (c Classification) Rank() int {
	switch c {
	case StrongSell:
		return 0
	case Sell:
		return 1
	case WeakSell:
		return 2
	case Hold:
		return 3
	case WeakBuy:
		return 4
	case Buy:
		return 5
	case StrongBuy:
		return 6
	default:
		return -1
	}
}

// DiagnosticKind groups non-fatal problems collected during a run.
type DiagnosticKind string

const (
	DiagDataInsufficient     DiagnosticKind = "data_insufficient"
	DiagNumericDegenerate    DiagnosticKind = "numeric_degenerate"
	DiagConstraintViolation  DiagnosticKind = "constraint_violation"
	DiagComputationError     DiagnosticKind = "computation_error"
	DiagInvalidConfiguration DiagnosticKind = "invalid_configuration"
)
