package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/risk"
	"vnEquityBot/internal/strategy/analytics"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/indicators"
	"vnEquityBot/internal/strategy/signals"
)

// Tunable parameter names.
const (
	ParamBuyThreshold      = "buy_threshold"
	ParamSellThreshold     = "sell_threshold"
	ParamHoldingPeriodMax  = "holding_period_max"
	ParamStopMultiplier    = "stop_multiplier"
	ParamMaxPositions      = "max_positions"
	ParamMinSignalStrength = "min_signal_strength"
	ParamMaxPositionSize   = "max_position_size"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// DefaultParameterRanges returns the standard search grid (108 combinations).
func DefaultParameterRanges() []ParameterRange {
	return []ParameterRange{
		{Name: ParamBuyThreshold, Min: 55, Max: 65, Step: 5},
		{Name: ParamSellThreshold, Min: 35, Max: 40, Step: 5},
		{Name: ParamHoldingPeriodMax, Min: 10, Max: 30, Step: 10, IsInt: true},
		{Name: ParamStopMultiplier, Min: 1.5, Max: 2.5, Step: 0.5},
		{Name: ParamMaxPositions, Min: 5, Max: 10, Step: 5, IsInt: true},
	}
}

// ParseRange parses "name=min:max:step". Integer parameters are detected by name.
func ParseRange(s string) (ParameterRange, error) {
	name, spec, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return ParameterRange{}, fmt.Errorf("%w: range %q is not name=min:max:step", ports.ErrInvalidConfiguration, s)
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return ParameterRange{}, fmt.Errorf("%w: range %q is not name=min:max:step", ports.ErrInvalidConfiguration, s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ParameterRange{}, fmt.Errorf("%w: range %q: %v", ports.ErrInvalidConfiguration, s, err)
		}
		vals[i] = v
	}
	r := ParameterRange{
		Name:  strings.TrimSpace(name),
		Min:   vals[0],
		Max:   vals[1],
		Step:  vals[2],
		IsInt: name == ParamHoldingPeriodMax || name == ParamMaxPositions,
	}
	return r, r.validate()
}

func (r ParameterRange) validate() error {
	if !knownParams[r.Name] {
		return fmt.Errorf("%w: unknown parameter %q", ports.ErrInvalidConfiguration, r.Name)
	}
	if !(r.Step > 0) || r.Max < r.Min {
		return fmt.Errorf("%w: parameter %s needs min <= max and a positive step", ports.ErrInvalidConfiguration, r.Name)
	}
	return nil
}

var knownParams = map[string]bool{
	ParamBuyThreshold:      true,
	ParamSellThreshold:     true,
	ParamHoldingPeriodMax:  true,
	ParamStopMultiplier:    true,
	ParamMaxPositions:      true,
	ParamMinSignalStrength: true,
	ParamMaxPositionSize:   true,
}

// BaseConfig holds the settings every combination starts from.
type BaseConfig struct {
	Indicators indicators.Config
	Signals    signals.Config
	Risk       risk.RiskConfig
	Backtest   backtesting.BacktestConfig
	Analyzer   analytics.AnalyzerConfig
}

// OptimizationResult holds the results of one parameter combination
type OptimizationResult struct {
	Parameters map[string]float64       `json:"parameters"`
	Report     domain.PerformanceReport `json:"report"`
	Score      float64                  `json:"score"`
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            BaseConfig
	Concurrency     int // Backtests run in parallel
	ScoreFunction   func(domain.PerformanceReport) float64
}

// Optimizer runs a grid search over backtest parameters.
type Optimizer struct {
	config OptimizerConfig
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if len(config.ParameterRanges) == 0 {
		config.ParameterRanges = DefaultParameterRanges()
	}
	for _, r := range config.ParameterRanges {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config, logger: logger}, nil
}

// Optimize backtests every parameter combination over bars and returns the results
// best first. Combinations that form an invalid configuration are skipped.
func (o *Optimizer) Optimize(ctx context.Context, bars map[string][]domain.Bar) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			res, err := o.evaluate(gCtx, params, bars)
			if errors.Is(err, ports.ErrInvalidConfiguration) {
				o.logger.Debug(gCtx, "Skipping invalid parameter combination", map[string]interface{}{"params": params, "error": err.Error()})
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)

	o.logger.Info(ctx, "Optimization finished", map[string]interface{}{
		"combinations": len(combinations),
		"evaluated":    len(results),
	})
	return results, nil
}

func (o *Optimizer) evaluate(ctx context.Context, params map[string]float64, bars map[string][]domain.Bar) (*OptimizationResult, error) {
	cfg, err := applyParams(o.config.Base, params)
	if err != nil {
		return nil, err
	}
	ind, err := indicators.NewEngine(cfg.Indicators)
	if err != nil {
		return nil, err
	}
	scorer, err := signals.NewScorer(cfg.Signals)
	if err != nil {
		return nil, err
	}
	sizer, err := risk.NewRiskManager(cfg.Risk)
	if err != nil {
		return nil, err
	}

	engine := backtesting.NewEngine(cfg.Backtest, ind, scorer, sizer, o.logger)
	result, err := engine.Run(ctx, bars)
	if err != nil {
		return nil, err
	}
	report := analytics.AnalyzePerformance(result.EquityCurve, result.Trades, result.Diagnostics, cfg.Analyzer)
	return &OptimizationResult{
		Parameters: params,
		Report:     report,
		Score:      o.config.ScoreFunction(report),
	}, nil
}

// applyParams overlays one combination on the base configuration. Threshold changes
// reach both the scorer's classifier and the engine's entry and exit rules.
func applyParams(base BaseConfig, params map[string]float64) (BaseConfig, error) {
	cfg := base
	// Parallel backtests each get one scoring worker
	cfg.Backtest.Workers = 1
	for name, v := range params {
		switch name {
		case ParamBuyThreshold:
			cfg.Signals.Thresholds.Buy = v
		case ParamSellThreshold:
			cfg.Signals.Thresholds.Sell = v
		case ParamHoldingPeriodMax:
			cfg.Backtest.HoldingPeriodMax = int(v)
		case ParamStopMultiplier:
			cfg.Risk.StopMultiplier = v
		case ParamMaxPositions:
			cfg.Backtest.MaxPositions = int(v)
		case ParamMinSignalStrength:
			cfg.Backtest.MinSignalStrength = v
		case ParamMaxPositionSize:
			cfg.Risk.MaxPositionSize = v
		default:
			return cfg, fmt.Errorf("%w: unknown parameter %q", ports.ErrInvalidConfiguration, name)
		}
	}
	cfg.Backtest.Thresholds = cfg.Signals.Thresholds

	if err := cfg.Signals.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Risk.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// generateParameterCombinations generates all possible parameter combinations.
// The first range varies slowest.
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			// Create a copy of the current combination
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		// Step by index so float error does not accumulate
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for k := 0; k <= steps; k++ {
			value := param.Min + float64(k)*param.Step
			if param.IsInt {
				value = math.Round(value)
			} else {
				value = math.Round(value*1e9) / 1e9
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order. Ties
// keep grid order.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction ranks by Sharpe ratio.
func DefaultScoreFunction(report domain.PerformanceReport) float64 {
	return report.SharpeRatio
}
