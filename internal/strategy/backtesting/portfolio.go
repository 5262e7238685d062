package backtesting

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vnEquityBot/internal/domain"
)

// portfolio is the cash ledger and the set of open positions. It is only touched by
// the day loop's coordinator.
type portfolio struct {
	cash      decimal.Decimal
	costRate  decimal.Decimal
	positions map[string]*domain.Position
	lastClose map[string]float64
	nextID    int64
}

func newPortfolio(initialCapital, commission, slippage float64) *portfolio {
	return &portfolio{
		cash:      decimal.NewFromFloat(initialCapital),
		costRate:  decimal.NewFromFloat(commission).Add(decimal.NewFromFloat(slippage)),
		positions: make(map[string]*domain.Position),
		lastClose: make(map[string]float64),
	}
}

// cost is commission plus slippage on a notional amount.
func (p *portfolio) cost(notional float64) decimal.Decimal {
	return decimal.NewFromFloat(notional).Mul(p.costRate)
}

func (p *portfolio) cashFloat() float64 {
	return p.cash.InexactFloat64()
}

func (p *portfolio) openCount() int {
	return len(p.positions)
}

func (p *portfolio) position(symbol string) *domain.Position {
	return p.positions[symbol]
}

// positionsValue marks every open position at its symbol's latest close.
func (p *portfolio) positionsValue() float64 {
	total := 0.0
	for _, symbol := range p.symbols() {
		pos := p.positions[symbol]
		total += pos.MarketValue(p.lastClose[symbol])
	}
	return total
}

func (p *portfolio) equity() float64 {
	return p.cashFloat() + p.positionsValue()
}

// symbols returns the symbols with open positions in lexicographic order.
func (p *portfolio) symbols() []string {
	out := make([]string, 0, len(p.positions))
	for s := range p.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// canAfford reports whether notional plus its entry cost fits in cash.
func (p *portfolio) canAfford(notional float64) bool {
	need := decimal.NewFromFloat(notional).Add(p.cost(notional))
	return need.LessThanOrEqual(p.cash)
}

// open fills pos at price and debits notional plus cost.
func (p *portfolio) open(pos *domain.Position, date time.Time, price float64) error {
	if _, exists := p.positions[pos.Symbol]; exists {
		return fmt.Errorf("position already open for %s", pos.Symbol)
	}
	notional := decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(price))
	cost := notional.Mul(p.costRate)
	if err := pos.Fill(date, price, cost.InexactFloat64()); err != nil {
		return err
	}
	p.cash = p.cash.Sub(notional).Sub(cost)
	p.positions[pos.Symbol] = pos
	return nil
}

// close exits the symbol's position at price, credits proceeds net of cost and
// returns the realized trade.
func (p *portfolio) close(symbol string, date time.Time, price float64, reason domain.ExitReason) (*domain.Trade, error) {
	pos, ok := p.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("no open position for %s", symbol)
	}
	notional := decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(price))
	cost := notional.Mul(p.costRate)
	trade, err := pos.Close(date, price, cost.InexactFloat64(), reason)
	if err != nil {
		return nil, err
	}
	p.cash = p.cash.Add(notional).Sub(cost)
	delete(p.positions, symbol)
	return trade, nil
}

func (p *portfolio) allocateID() int64 {
	p.nextID++
	return p.nextID
}
