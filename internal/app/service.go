package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vnEquityBot/config"
	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/observability"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/risk"
	"vnEquityBot/internal/strategy/analytics"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/indicators"
	"vnEquityBot/internal/strategy/optimization"
	"vnEquityBot/internal/strategy/signals"
)

// BacktestService orchestrates loading data, simulating, analyzing and storing runs.
type BacktestService struct {
	cfg     *config.Config
	logger  ports.Logger
	source  ports.BarSource
	repo    ports.RunRepository // optional; runs are not persisted when nil
	metrics *observability.Metrics

	indicators *indicators.Engine
	scorer     *signals.Scorer
	sizer      *risk.RiskManager

	newID func() string
	now   func() time.Time
}

// NewBacktestService creates a new application service instance.
func NewBacktestService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.BarSource,
	repo ports.RunRepository,
	metrics *observability.Metrics,
) (*BacktestService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || source == nil {
		return nil, fmt.Errorf("missing required dependencies for BacktestService")
	}

	ind, err := indicators.NewEngine(cfg.IndicatorConfig())
	if err != nil {
		return nil, fmt.Errorf("indicator engine: %w", err)
	}
	scorer, err := signals.NewScorer(cfg.SignalConfig())
	if err != nil {
		return nil, fmt.Errorf("signal scorer: %w", err)
	}
	sizer, err := risk.NewRiskManager(cfg.RiskConfig())
	if err != nil {
		return nil, fmt.Errorf("risk manager: %w", err)
	}

	return &BacktestService{
		cfg:        cfg,
		logger:     logger,
		source:     source,
		repo:       repo,
		metrics:    metrics,
		indicators: ind,
		scorer:     scorer,
		sizer:      sizer,
		newID:      func() string { return uuid.New().String() },
		now:        time.Now,
	}, nil
}

// RunOutput is everything one backtest produced.
type RunOutput struct {
	Run    *domain.BacktestRun
	Result *backtesting.Result
}

// RunBacktest loads the symbols (or the configured ones, or every available one),
// simulates them, analyzes the outcome and stores the run when a repository is set.
func (s *BacktestService) RunBacktest(ctx context.Context, symbols []string, progress func(backtesting.Progress)) (*RunOutput, error) {
	bars, err := s.loadBars(ctx, symbols)
	if err != nil {
		return nil, err
	}

	opts := []backtesting.Option{backtesting.WithMetrics(s.metrics)}
	if progress != nil {
		opts = append(opts, backtesting.WithProgress(progress))
	}
	engine := backtesting.NewEngine(s.cfg.BacktestConfig(), s.indicators, s.scorer, s.sizer, s.logger, opts...)

	result, err := engine.Run(ctx, bars)
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed")
		return nil, fmt.Errorf("backtest: %w", err)
	}

	report := analytics.AnalyzePerformance(result.EquityCurve, result.Trades, result.Diagnostics, s.cfg.AnalyzerConfig())
	run := &domain.BacktestRun{
		ID:          s.newID(),
		CreatedAt:   s.now().UTC(),
		Symbols:     sortedSymbols(bars),
		Config:      s.cfg.Snapshot(),
		Report:      report,
		Trades:      result.Trades,
		EquityCurve: result.EquityCurve,
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			s.logger.Error(ctx, err, "Failed to save run", map[string]interface{}{"runID": run.ID})
			return nil, fmt.Errorf("saving run %s: %w", run.ID, err)
		}
	}

	s.logger.Info(ctx, "Backtest completed", map[string]interface{}{
		"runID":        run.ID,
		"symbols":      len(run.Symbols),
		"trades":       report.TotalTrades,
		"total_return": report.TotalReturn,
		"sharpe":       report.SharpeRatio,
		"max_drawdown": report.MaxDrawdown,
	})
	return &RunOutput{Run: run, Result: result}, nil
}

// ScoreLatest scores every symbol on its most recent bar and returns the signals
// strongest first. Symbols without enough history are logged and left out.
func (s *BacktestService) ScoreLatest(ctx context.Context, symbols []string) ([]domain.CompositeSignal, error) {
	bars, err := s.loadBars(ctx, symbols)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CompositeSignal, 0, len(bars))
	for _, symbol := range sortedSymbols(bars) {
		series := bars[symbol]
		if err := domain.ValidateBars(symbol, series); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrInvalidBars, err)
		}
		sets := s.indicators.Series(series)
		if len(sets) == 0 || !sets[len(sets)-1].Valid {
			s.logger.Warn(ctx, "Not enough history to score", map[string]interface{}{"symbol": symbol, "bars": len(series)})
			continue
		}
		from := len(series) - s.scorer.WindowSize()
		if from < 0 {
			from = 0
		}
		signal, err := s.scorer.Score(ctx, symbol, series[from:], sets[from:])
		if errors.Is(err, ports.ErrContextCanceled) {
			return nil, err
		}
		if err != nil {
			s.logger.Warn(ctx, "Scoring failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		out = append(out, signal)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Optimize grid-searches the given ranges (the default grid when empty) starting from
// the loaded configuration.
func (s *BacktestService) Optimize(ctx context.Context, symbols []string, ranges []optimization.ParameterRange, concurrency int) ([]optimization.OptimizationResult, error) {
	bars, err := s.loadBars(ctx, symbols)
	if err != nil {
		return nil, err
	}
	optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: ranges,
		Base: optimization.BaseConfig{
			Indicators: s.cfg.IndicatorConfig(),
			Signals:    s.cfg.SignalConfig(),
			Risk:       s.cfg.RiskConfig(),
			Backtest:   s.cfg.BacktestConfig(),
			Analyzer:   s.cfg.AnalyzerConfig(),
		},
		Concurrency: concurrency,
	}, s.logger)
	if err != nil {
		return nil, err
	}
	return optimizer.Optimize(ctx, bars)
}

// ListRuns returns the most recent stored runs.
func (s *BacktestService) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no run repository configured: %w", ports.ErrNotFound)
	}
	return s.repo.ListRuns(ctx, limit)
}

// FindRun returns a stored run, or ports.ErrNotFound.
func (s *BacktestService) FindRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no run repository configured: %w", ports.ErrNotFound)
	}
	run, err := s.repo.FindRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	return run, nil
}

// loadBars resolves the symbol list: explicit argument, then configuration, then all.
func (s *BacktestService) loadBars(ctx context.Context, symbols []string) (map[string][]domain.Bar, error) {
	if len(symbols) == 0 {
		symbols = s.cfg.Symbols
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			normalized = append(normalized, sym)
		}
	}

	bars, err := s.source.LoadBars(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no symbols available", ports.ErrInvalidBars)
	}
	return bars, nil
}

func sortedSymbols(bars map[string][]domain.Bar) []string {
	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
