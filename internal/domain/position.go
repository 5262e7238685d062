package domain

import (
	"fmt"
	"sort"
	"time"
)

// Position represents a simulated holding.
type Position struct {
	ID     int64          // Sequence number within a run
	Symbol string         // Trading symbol (e.g., "FPT")
	Status PositionStatus // pending, open or closed

	EntryDate  time.Time
	EntryPrice float64 // Fill price (the entry day's close)
	Shares     float64
	EntryCost  float64 // Commission + slippage paid on entry

	StopPrice      float64   // Exit when the day's low reaches this level
	TakeProfits    []float64 // Ascending target prices; the first is the nearest
	MaxHoldingDays int       // Trading days after which the position is closed at the close
	HoldingDays    int       // Trading days elapsed since entry

	PositionSizePct     float64        // Entry value as a fraction of equity at entry
	EntryScore          float64        // Composite score that triggered the entry
	EntryClassification Classification // Classification that triggered the entry

	ExitDate   time.Time
	ExitPrice  float64
	ExitCost   float64
	ExitReason ExitReason
}

// NewPendingPosition creates a position awaiting its fill.
func NewPendingPosition(id int64, symbol string, shares, stop float64, targets []float64, maxHolding int) (*Position, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("position %s: shares must be positive, got %f", symbol, shares)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("position %s: at least one take-profit target is required", symbol)
	}
	sorted := append([]float64(nil), targets...)
	sort.Float64s(sorted)
	return &Position{
		ID:             id,
		Symbol:         symbol,
		Status:         StatusPending,
		Shares:         shares,
		StopPrice:      stop,
		TakeProfits:    sorted,
		MaxHoldingDays: maxHolding,
	}, nil
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// NearestTarget returns the lowest take-profit price.
func (p *Position) NearestTarget() float64 {
	return p.TakeProfits[0]
}

// EntryValue is the notional paid for the shares, excluding costs.
func (p *Position) EntryValue() float64 {
	return p.EntryPrice * p.Shares
}

// MarketValue marks the position at price.
func (p *Position) MarketValue(price float64) float64 {
	return p.Shares * price
}

// Fill moves a pending position to open.
func (p *Position) Fill(date time.Time, price, cost float64) error {
	if p.Status != StatusPending {
		return fmt.Errorf("position %d (%s): cannot fill from status %s", p.ID, p.Symbol, p.Status)
	}
	if price <= 0 {
		return fmt.Errorf("position %d (%s): fill price must be positive", p.ID, p.Symbol)
	}
	p.EntryDate = date
	p.EntryPrice = price
	p.EntryCost = cost
	p.Status = StatusOpen
	return nil
}

// Close moves an open position to closed and returns the realized trade.
func (p *Position) Close(date time.Time, price, cost float64, reason ExitReason) (*Trade, error) {
	if p.Status != StatusOpen {
		return nil, fmt.Errorf("position %d (%s): cannot close from status %s", p.ID, p.Symbol, p.Status)
	}
	if reason == "" {
		return nil, fmt.Errorf("position %d (%s): exit reason is required", p.ID, p.Symbol)
	}
	p.ExitDate = date
	p.ExitPrice = price
	p.ExitCost = cost
	p.ExitReason = reason
	p.Status = StatusClosed
	return newTrade(p), nil
}
