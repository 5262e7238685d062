package domain

import "time"

// Trade represents a realized, closed position. It is immutable once created.
type Trade struct {
	PositionID  int64      `json:"position_id"`
	Symbol      string     `json:"symbol"`
	EntryDate   time.Time  `json:"entry_date"`
	ExitDate    time.Time  `json:"exit_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Shares      float64    `json:"shares"`
	HoldingDays int        `json:"holding_days"`
	GrossPnL    float64    `json:"gross_pnl"`
	Cost        float64    `json:"cost"` // entry + exit transaction costs
	NetPnL      float64    `json:"net_pnl"`
	ReturnPct   float64    `json:"return_pct"` // NetPnL over entry value
	Win         bool       `json:"win"`
	ExitReason  ExitReason `json:"exit_reason"`

	PositionSizePct     float64        `json:"position_size_pct"`
	EntryScore          float64        `json:"entry_score"`
	EntryClassification Classification `json:"entry_classification"`
}

func newTrade(p *Position) *Trade {
	gross := (p.ExitPrice - p.EntryPrice) * p.Shares
	cost := p.EntryCost + p.ExitCost
	net := gross - cost
	ret := 0.0
	if v := p.EntryValue(); v > 0 {
		ret = net / v
	}
	return &Trade{
		PositionID:          p.ID,
		Symbol:              p.Symbol,
		EntryDate:           p.EntryDate,
		ExitDate:            p.ExitDate,
		EntryPrice:          p.EntryPrice,
		ExitPrice:           p.ExitPrice,
		Shares:              p.Shares,
		HoldingDays:         p.HoldingDays,
		GrossPnL:            gross,
		Cost:                cost,
		NetPnL:              net,
		ReturnPct:           ret,
		Win:                 net > 0,
		ExitReason:          p.ExitReason,
		PositionSizePct:     p.PositionSizePct,
		EntryScore:          p.EntryScore,
		EntryClassification: p.EntryClassification,
	}
}
