package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/observability"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/risk"
	"vnEquityBot/internal/strategy/indicators"
	"vnEquityBot/internal/strategy/signals"
)

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	InitialCapital    float64
	CommissionRate    float64
	Slippage          float64
	MaxPositions      int
	MinTradeAmount    float64
	MinSignalStrength float64
	HoldingPeriodMax  int // Trading days
	VolatilityWindow  int // Daily returns used for annualized volatility
	Workers           int // Concurrent per-symbol scoring goroutines
	StartDate         time.Time
	EndDate           time.Time
	Thresholds        signals.Thresholds
}

// DefaultBacktestConfig returns the standard simulation settings.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:    1_000_000_000,
		CommissionRate:    0.0015,
		Slippage:          0.001,
		MaxPositions:      10,
		MinTradeAmount:    1_000_000,
		MinSignalStrength: 0.4,
		HoldingPeriodMax:  30,
		VolatilityWindow:  30,
		Workers:           4,
		Thresholds:        signals.DefaultThresholds(),
	}
}

// Validate checks every setting and reports all problems at once.
func (c BacktestConfig) Validate() error {
	var errs []string
	if !(c.InitialCapital > 0) {
		errs = append(errs, "initial_capital must be positive")
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		errs = append(errs, "commission_rate must be within [0,1)")
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		errs = append(errs, "slippage must be within [0,1)")
	}
	if c.MaxPositions < 1 {
		errs = append(errs, "max_positions must be at least 1")
	}
	if c.MinTradeAmount < 0 {
		errs = append(errs, "min_trade_amount must not be negative")
	}
	if c.MinSignalStrength < 0 || c.MinSignalStrength > 1 {
		errs = append(errs, "min_signal_strength must be within [0,1]")
	}
	if c.HoldingPeriodMax < 1 {
		errs = append(errs, "holding_period_max must be at least 1")
	}
	if c.VolatilityWindow < 2 {
		errs = append(errs, "volatility window must be at least 2")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		errs = append(errs, "end_date is before start_date")
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ports.ErrInvalidConfiguration, errs)
	}
	return nil
}

// Progress is reported once per simulated day before the day is processed.
type Progress struct {
	Day       int // 1-based
	TotalDays int
	Date      time.Time
	Equity    float64 // equity at the end of the previous day
}

// SkippedEntry is a qualifying entry that was not taken.
type SkippedEntry struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason"`
}

// Result holds the raw output of a simulation.
type Result struct {
	InitialCapital float64
	StartDate      time.Time
	EndDate        time.Time
	Trades         []*domain.Trade
	EquityCurve    []domain.EquityPoint
	Diagnostics    []domain.Diagnostic
	Skipped        []SkippedEntry
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProgress registers a callback invoked once per simulated day.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine simulates the signal-driven strategy day by day over a set of symbols.
type Engine struct {
	config     BacktestConfig
	indicators *indicators.Engine
	scorer     ports.SignalScorer
	sizer      *risk.RiskManager
	logger     ports.Logger
	progress   func(Progress)
	metrics    *observability.Metrics
}

// NewEngine creates a backtest engine. The configuration is validated by Run so that
// misconfiguration surfaces before the first simulated day.
func NewEngine(cfg BacktestConfig, ind *indicators.Engine, scorer ports.SignalScorer, sizer *risk.RiskManager, logger ports.Logger, opts ...Option) *Engine {
	e := &Engine{
		config:     cfg,
		indicators: ind,
		scorer:     scorer,
		sizer:      sizer,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// symbolState tracks one symbol's position in its own bar history.
type symbolState struct {
	symbol string
	bars   []domain.Bar
	sets   []domain.IndicatorSet
	cursor int  // index of the latest bar on or before the current date, -1 before the first
	hasBar bool // the symbol traded on the current date
}

type scored struct {
	signal *domain.CompositeSignal
	err    error
}

// Run simulates the strategy over bars. It fails before the first simulated day on an
// invalid configuration or bar series; per-symbol problems during the run become
// diagnostics.
func (e *Engine) Run(ctx context.Context, bars map[string][]domain.Bar) (result *Result, err error) {
	started := time.Now()
	defer func() { e.metrics.ObserveRun(time.Since(started), err) }()

	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.indicators == nil || e.scorer == nil || e.sizer == nil {
		return nil, fmt.Errorf("%w: engine requires indicators, scorer and sizer", ports.ErrInvalidConfiguration)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no symbols to simulate", ports.ErrInvalidBars)
	}

	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	states := make([]*symbolState, len(symbols))
	for i, s := range symbols {
		if err := domain.ValidateBars(s, bars[s]); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrInvalidBars, err)
		}
		states[i] = &symbolState{
			symbol: s,
			bars:   bars[s],
			sets:   e.indicators.Series(bars[s]),
			cursor: -1,
		}
	}

	calendar := e.calendar(states)
	if len(calendar) == 0 {
		return nil, fmt.Errorf("%w: no trading dates in the backtest window", ports.ErrInvalidBars)
	}

	e.logger.Info(ctx, "Starting backtest", map[string]interface{}{
		"symbols": len(symbols),
		"days":    len(calendar),
		"start":   calendar[0].Format("2006-01-02"),
		"end":     calendar[len(calendar)-1].Format("2006-01-02"),
		"capital": e.config.InitialCapital,
	})

	book := newPortfolio(e.config.InitialCapital, e.config.CommissionRate, e.config.Slippage)
	diags := newDiagnostics(e.metrics)
	result = &Result{
		InitialCapital: e.config.InitialCapital,
		StartDate:      calendar[0],
		EndDate:        calendar[len(calendar)-1],
		EquityCurve:    make([]domain.EquityPoint, 0, len(calendar)),
	}
	peak := e.config.InitialCapital
	lastEquity := e.config.InitialCapital

	for day, date := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: stopped at %s: %v", ports.ErrContextCanceled, date.Format("2006-01-02"), err)
		}
		if e.progress != nil {
			e.progress(Progress{Day: day + 1, TotalDays: len(calendar), Date: date, Equity: lastEquity})
		}

		for _, st := range states {
			st.advance(date)
			if st.cursor >= 0 {
				book.lastClose[st.symbol] = st.bars[st.cursor].Close
			}
		}

		scores, err := e.scoreDay(ctx, states, date, diags)
		if err != nil {
			return nil, err
		}

		final := day == len(calendar)-1
		if err := e.processExits(ctx, book, states, scores, date, result, diags); err != nil {
			return nil, err
		}
		if !final {
			if err := e.processEntries(ctx, book, states, scores, date, result, diags); err != nil {
				return nil, err
			}
		} else {
			if err := e.liquidate(ctx, book, date, result); err != nil {
				return nil, err
			}
		}

		cash := book.cashFloat()
		positionsValue := book.positionsValue()
		equity := cash + positionsValue
		if equity > peak {
			peak = equity
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = (peak - equity) / peak
		}
		result.EquityCurve = append(result.EquityCurve, domain.EquityPoint{
			Date:           date,
			Cash:           cash,
			PositionsValue: positionsValue,
			Equity:         equity,
			Peak:           peak,
			Drawdown:       drawdown,
			OpenPositions:  book.openCount(),
		})
		lastEquity = equity
		e.metrics.RecordDay(equity)
	}

	result.Diagnostics = diags.list()
	e.logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"trades":       len(result.Trades),
		"final_equity": lastEquity,
		"diagnostics":  len(result.Diagnostics),
		"skipped":      len(result.Skipped),
	})
	return result, nil
}

// calendar is the sorted union of bar dates restricted to the configured window.
func (e *Engine) calendar(states []*symbolState) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, st := range states {
		for _, b := range st.bars {
			d := domain.DateOnly(b.Date)
			if !e.config.StartDate.IsZero() && d.Before(domain.DateOnly(e.config.StartDate)) {
				continue
			}
			if !e.config.EndDate.IsZero() && d.After(domain.DateOnly(e.config.EndDate)) {
				continue
			}
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// advance moves the cursor to the latest bar on or before date. Bars before the
// window are consumed on the first day and serve only as indicator history.
func (st *symbolState) advance(date time.Time) {
	st.hasBar = false
	for st.cursor+1 < len(st.bars) && !domain.DateOnly(st.bars[st.cursor+1].Date).After(date) {
		st.cursor++
	}
	if st.cursor >= 0 && domain.DateOnly(st.bars[st.cursor].Date).Equal(date) {
		st.hasBar = true
	}
}

// scoreDay scores every symbol that traded on date on a bounded worker pool. Results
// land in a slice indexed like states, so application order never depends on
// goroutine scheduling.
func (e *Engine) scoreDay(ctx context.Context, states []*symbolState, date time.Time, diags *diagnostics) ([]scored, error) {
	results := make([]scored, len(states))
	window := e.scorer.WindowSize()

	g := new(errgroup.Group)
	g.SetLimit(e.config.Workers)
	for i, st := range states {
		if !st.hasBar {
			continue
		}
		if !st.sets[st.cursor].Valid {
			diags.add(domain.DiagDataInsufficient, st.symbol, "indicator lookback not filled", date)
			continue
		}
		i, st := i, st
		lo := st.cursor + 1 - window
		if lo < 0 {
			lo = 0
		}
		g.Go(func() error {
			sig, err := e.scorer.Score(ctx, st.symbol, st.bars[lo:st.cursor+1], st.sets[lo:st.cursor+1])
			if err != nil {
				if errors.Is(err, ports.ErrContextCanceled) {
					return err
				}
				results[i] = scored{err: err}
				return nil
			}
			results[i] = scored{signal: &sig}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range results {
		if r.err == nil {
			continue
		}
		kind := domain.DiagComputationError
		if errors.Is(r.err, ports.ErrDataInsufficient) {
			kind = domain.DiagDataInsufficient
		}
		diags.add(kind, states[i].symbol, r.err.Error(), date)
		e.logger.Warn(ctx, "Scoring failed, symbol skipped for the day", map[string]interface{}{
			"symbol": states[i].symbol,
			"date":   date.Format("2006-01-02"),
			"error":  r.err.Error(),
		})
	}
	return results, nil
}

// processExits evaluates open positions in symbol order. The first matching rule in
// stop_loss, take_profit, signal_exit, max_holding order closes the position.
func (e *Engine) processExits(ctx context.Context, book *portfolio, states []*symbolState, scores []scored, date time.Time, result *Result, diags *diagnostics) error {
	for i, st := range states {
		pos := book.position(st.symbol)
		if pos == nil || !st.hasBar || !pos.EntryDate.Before(date) {
			continue
		}
		pos.HoldingDays++
		bar := st.bars[st.cursor]

		var reason domain.ExitReason
		var price float64
		switch {
		case bar.Low <= pos.StopPrice:
			reason, price = domain.ExitStopLoss, pos.StopPrice
		case bar.High >= pos.NearestTarget():
			reason, price = domain.ExitTakeProfit, pos.NearestTarget()
		case scores[i].signal != nil && scores[i].signal.Score <= e.config.Thresholds.Sell:
			reason, price = domain.ExitSignal, bar.Close
		case pos.HoldingDays >= pos.MaxHoldingDays:
			reason, price = domain.ExitMaxHolding, bar.Close
		default:
			continue
		}

		if err := e.closePosition(ctx, book, st.symbol, date, price, reason, result); err != nil {
			return err
		}
	}
	return nil
}

// processEntries opens positions for qualifying signals in symbol order.
func (e *Engine) processEntries(ctx context.Context, book *portfolio, states []*symbolState, scores []scored, date time.Time, result *Result, diags *diagnostics) error {
	for i, st := range states {
		sig := scores[i].signal
		if sig == nil || sig.Score < e.config.Thresholds.Buy || sig.Strength < e.config.MinSignalStrength {
			continue
		}
		if book.position(st.symbol) != nil {
			continue
		}
		if book.openCount() >= e.config.MaxPositions {
			e.skip(ctx, result, diags, date, st.symbol, sig.Score, "max_positions", "max positions reached")
			continue
		}

		price := st.bars[st.cursor].Close
		vol, degenerate := risk.AnnualizedVolatility(st.bars[:st.cursor+1], e.config.VolatilityWindow, 0)
		if degenerate {
			diags.add(domain.DiagNumericDegenerate, st.symbol, "volatility unavailable, reference volatility used", date)
		}
		equity := book.equity()
		sizing, err := e.sizer.Size(risk.SizingInput{
			Price:      price,
			Equity:     equity,
			Volatility: vol,
			ATR:        st.sets[st.cursor].ATR,
			Score:      sig.Score,
		})
		if err != nil {
			e.skip(ctx, result, diags, date, st.symbol, sig.Score, "position_size", "no lot-rounded size within position limits")
			continue
		}
		if sizing.Value < e.config.MinTradeAmount {
			e.skip(ctx, result, diags, date, st.symbol, sig.Score, "min_trade_amount", "position value below minimum trade amount")
			continue
		}
		if !book.canAfford(sizing.Value) {
			e.skip(ctx, result, diags, date, st.symbol, sig.Score, "cash", "insufficient cash")
			continue
		}

		pos, err := domain.NewPendingPosition(book.allocateID(), st.symbol, sizing.Shares, sizing.StopPrice, sizing.TakeProfits, e.config.HoldingPeriodMax)
		if err != nil {
			return fmt.Errorf("creating position for %s: %w", st.symbol, err)
		}
		pos.PositionSizePct = sizing.Value / equity
		pos.EntryScore = sig.Score
		pos.EntryClassification = sig.Classification
		if err := book.open(pos, date, price); err != nil {
			return fmt.Errorf("opening position for %s: %w", st.symbol, err)
		}

		e.logger.Debug(ctx, "Position opened", map[string]interface{}{
			"symbol": st.symbol,
			"date":   date.Format("2006-01-02"),
			"price":  price,
			"shares": sizing.Shares,
			"stop":   sizing.StopPrice,
			"score":  sig.Score,
		})
	}
	return nil
}

// liquidate closes every remaining position at its symbol's latest close.
func (e *Engine) liquidate(ctx context.Context, book *portfolio, date time.Time, result *Result) error {
	for _, symbol := range book.symbols() {
		if err := e.closePosition(ctx, book, symbol, date, book.lastClose[symbol], domain.ExitLiquidation, result); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) closePosition(ctx context.Context, book *portfolio, symbol string, date time.Time, price float64, reason domain.ExitReason, result *Result) error {
	trade, err := book.close(symbol, date, price, reason)
	if err != nil {
		return fmt.Errorf("closing position for %s: %w", symbol, err)
	}
	result.Trades = append(result.Trades, trade)
	e.metrics.RecordTrade(reason)
	e.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"symbol":  symbol,
		"date":    date.Format("2006-01-02"),
		"price":   price,
		"reason":  string(reason),
		"net_pnl": trade.NetPnL,
	})
	return nil
}

func (e *Engine) skip(ctx context.Context, result *Result, diags *diagnostics, date time.Time, symbol string, score float64, code, message string) {
	result.Skipped = append(result.Skipped, SkippedEntry{Date: date, Symbol: symbol, Score: score, Reason: message})
	diags.add(domain.DiagConstraintViolation, symbol, message, date)
	e.metrics.RecordSkip(code)
	e.logger.Info(ctx, "Entry skipped", map[string]interface{}{
		"symbol": symbol,
		"date":   date.Format("2006-01-02"),
		"reason": message,
	})
}
