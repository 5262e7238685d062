package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vnEquityBot/internal/adapters/logger" // Import the logger package for LogLevel
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/risk"
	"vnEquityBot/internal/strategy/analytics"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/indicators"
	"vnEquityBot/internal/strategy/signals"
)

const dateLayout = "2006-01-02"

// Config holds all application configuration.
// Keys are snake case in scenario files and upper case in the environment.
type Config struct {
	// Data and storage
	DataDir     string   `yaml:"data_dir" json:"data_dir" validate:"required"`
	Symbols     []string `yaml:"symbols" json:"symbols"`
	DBPath      string   `yaml:"db_path" json:"db_path" validate:"required"`
	MetricsPath string   `yaml:"metrics_path" json:"metrics_path"`
	LogLevelRaw string   `yaml:"log_level" json:"-"`

	// Logging
	LogLevel logger.LogLevel `yaml:"-" json:"-"`

	// Simulation
	InitialCapital    float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0"`
	CommissionRate    float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0,lt=1"`
	Slippage          float64 `yaml:"slippage" json:"slippage" validate:"gte=0,lt=1"`
	MaxPositions      int     `yaml:"max_positions" json:"max_positions" validate:"gte=1"`
	LookbackPeriod    int     `yaml:"lookback_period" json:"lookback_period" validate:"gte=1"`
	MinTradeAmount    float64 `yaml:"min_trade_amount" json:"min_trade_amount" validate:"gte=0"`
	MinSignalStrength float64 `yaml:"min_signal_strength" json:"min_signal_strength" validate:"gte=0,lte=1"`
	HoldingPeriodMax  int     `yaml:"holding_period_max" json:"holding_period_max" validate:"gte=1"`
	RiskFreeRate      float64 `yaml:"risk_free_rate" json:"risk_free_rate" validate:"gte=0,lt=1"`
	Workers           int     `yaml:"workers" json:"workers" validate:"gte=1,lte=256"`
	StartDate         string  `yaml:"start_date" json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string  `yaml:"end_date" json:"end_date" validate:"omitempty,datetime=2006-01-02"`

	// Signals
	SignalWindow        int                `yaml:"signal_window" json:"signal_window" validate:"gte=11"`
	StrongBuyThreshold  float64            `yaml:"strong_buy_threshold" json:"strong_buy_threshold" validate:"gte=0,lte=100"`
	BuyThreshold        float64            `yaml:"buy_threshold" json:"buy_threshold" validate:"gte=0,lte=100"`
	WeakBuyThreshold    float64            `yaml:"weak_buy_threshold" json:"weak_buy_threshold" validate:"gte=0,lte=100"`
	WeakSellThreshold   float64            `yaml:"weak_sell_threshold" json:"weak_sell_threshold" validate:"gte=0,lte=100"`
	SellThreshold       float64            `yaml:"sell_threshold" json:"sell_threshold" validate:"gte=0,lte=100"`
	StrongSellThreshold float64            `yaml:"strong_sell_threshold" json:"strong_sell_threshold" validate:"gte=0,lte=100"`
	Weights             signals.Weights    `yaml:"weights" json:"weights"`
	RegionalMultipliers map[string]float64 `yaml:"regional_multipliers" json:"regional_multipliers" validate:"dive,gt=0"`

	// Risk
	BaseRiskPerTrade float64 `yaml:"base_risk_per_trade" json:"base_risk_per_trade" validate:"gt=0,lt=1"`
	MinPositionSize  float64 `yaml:"min_position_size" json:"min_position_size" validate:"gt=0,lte=1"`
	MaxPositionSize  float64 `yaml:"max_position_size" json:"max_position_size" validate:"gt=0,lte=1"`
	StopLossPct      float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct    float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gt=0"`
	StopMultiplier   float64 `yaml:"stop_multiplier" json:"stop_multiplier" validate:"gt=0"`
	MinStopPct       float64 `yaml:"min_stop_pct" json:"min_stop_pct" validate:"gt=0,lt=1"`
	MaxStopPct       float64 `yaml:"max_stop_pct" json:"max_stop_pct" validate:"gt=0,lt=1"`
	LotSize          float64 `yaml:"lot_size" json:"lot_size" validate:"gte=1"`

	startDate time.Time
	endDate   time.Time
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their scenario-file names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Default returns the configuration used when neither a scenario file nor the
// environment sets a key.
func Default() *Config {
	bt := backtesting.DefaultBacktestConfig()
	rc := risk.DefaultRiskConfig()
	th := signals.DefaultThresholds()
	return &Config{
		DataDir:     "./data/prices",
		DBPath:      "./data/backtests.db",
		LogLevelRaw: "INFO",
		LogLevel:    logger.LevelInfo,

		InitialCapital:    bt.InitialCapital,
		CommissionRate:    bt.CommissionRate,
		Slippage:          bt.Slippage,
		MaxPositions:      bt.MaxPositions,
		LookbackPeriod:    indicators.DefaultConfig().MinLookback,
		MinTradeAmount:    bt.MinTradeAmount,
		MinSignalStrength: bt.MinSignalStrength,
		HoldingPeriodMax:  bt.HoldingPeriodMax,
		RiskFreeRate:      analytics.DefaultAnalyzerConfig(bt.InitialCapital).RiskFreeRate,
		Workers:           bt.Workers,

		SignalWindow:        signals.DefaultConfig().Window,
		StrongBuyThreshold:  th.StrongBuy,
		BuyThreshold:        th.Buy,
		WeakBuyThreshold:    th.WeakBuy,
		WeakSellThreshold:   th.WeakSell,
		SellThreshold:       th.Sell,
		StrongSellThreshold: th.StrongSell,
		Weights:             signals.DefaultWeights(),
		RegionalMultipliers: map[string]float64{},

		BaseRiskPerTrade: rc.BaseRiskPerTrade,
		MinPositionSize:  rc.MinPositionSize,
		MaxPositionSize:  rc.MaxPositionSize,
		StopLossPct:      rc.StopLossPct,
		TakeProfitPct:    rc.TakeProfitPct,
		StopMultiplier:   rc.StopMultiplier,
		MinStopPct:       rc.MinStopPct,
		MaxStopPct:       rc.MaxStopPct,
		LotSize:          rc.LotSize,
	}
}

// LoadConfig loads configuration from a YAML scenario and environment variables
// (.env file). An empty scenarioPath falls back to SCENARIO_PATH.
func LoadConfig(scenarioPath string) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	if scenarioPath == "" {
		scenarioPath = os.Getenv("SCENARIO_PATH")
	}
	return Load(scenarioPath)
}

// Load applies, in order: defaults, the YAML scenario at scenarioPath (skipped when
// empty), environment overrides. Every validation failure is reported at once.
func Load(scenarioPath string) (*Config, error) {
	cfg := Default()
	if scenarioPath != "" {
		if err := cfg.applyScenario(scenarioPath); err != nil {
			return nil, err
		}
	}

	var errs []string
	cfg.applyEnv(&errs)
	errs = append(errs, cfg.validate()...)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w: %s", ports.ErrInvalidConfiguration, strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) applyScenario(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening scenario %q: %w: %v", path, ports.ErrInvalidConfiguration, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing scenario %q: %w: %v", path, ports.ErrInvalidConfiguration, err)
	}
	return nil
}

func (c *Config) applyEnv(errs *[]string) {
	var err error
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.MetricsPath = getEnv("METRICS_PATH", c.MetricsPath)
	c.Symbols = getEnvAsStringSlice("SYMBOLS", c.Symbols)

	// Logging
	c.LogLevelRaw = getEnv("LOG_LEVEL", c.LogLevelRaw)
	c.LogLevel = logger.ParseLevel(c.LogLevelRaw) // Use the parser from the logger package

	floats := []struct {
		key string
		dst *float64
	}{
		{"INITIAL_CAPITAL", &c.InitialCapital},
		{"COMMISSION_RATE", &c.CommissionRate},
		{"SLIPPAGE", &c.Slippage},
		{"MIN_TRADE_AMOUNT", &c.MinTradeAmount},
		{"MIN_SIGNAL_STRENGTH", &c.MinSignalStrength},
		{"RISK_FREE_RATE", &c.RiskFreeRate},
		{"STRONG_BUY_THRESHOLD", &c.StrongBuyThreshold},
		{"BUY_THRESHOLD", &c.BuyThreshold},
		{"WEAK_BUY_THRESHOLD", &c.WeakBuyThreshold},
		{"WEAK_SELL_THRESHOLD", &c.WeakSellThreshold},
		{"SELL_THRESHOLD", &c.SellThreshold},
		{"STRONG_SELL_THRESHOLD", &c.StrongSellThreshold},
		{"BASE_RISK_PER_TRADE", &c.BaseRiskPerTrade},
		{"MIN_POSITION_SIZE", &c.MinPositionSize},
		{"MAX_POSITION_SIZE", &c.MaxPositionSize},
		{"STOP_LOSS_PCT", &c.StopLossPct},
		{"TAKE_PROFIT_PCT", &c.TakeProfitPct},
		{"STOP_MULTIPLIER", &c.StopMultiplier},
		{"MIN_STOP_PCT", &c.MinStopPct},
		{"MAX_STOP_PCT", &c.MaxStopPct},
		{"LOT_SIZE", &c.LotSize},
	}
	for _, f := range floats {
		if *f.dst, err = getEnvAsFloatRequired(f.key, *f.dst); err != nil {
			*errs = append(*errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_POSITIONS", &c.MaxPositions},
		{"LOOKBACK_PERIOD", &c.LookbackPeriod},
		{"HOLDING_PERIOD_MAX", &c.HoldingPeriodMax},
		{"WORKERS", &c.Workers},
		{"SIGNAL_WINDOW", &c.SignalWindow},
	}
	for _, i := range ints {
		if *i.dst, err = getEnvAsIntRequired(i.key, *i.dst); err != nil {
			*errs = append(*errs, fmt.Sprintf("invalid %s: %v", i.key, err))
		}
	}

	c.StartDate = getEnv("START_DATE", c.StartDate)
	c.EndDate = getEnv("END_DATE", c.EndDate)

	if c.RegionalMultipliers, err = getEnvAsFloatMap("REGIONAL_MULTIPLIERS", c.RegionalMultipliers); err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid REGIONAL_MULTIPLIERS: %v", err))
	}
}

// validate runs the struct tag checks, then the cross-field rules of every component
// configuration built from c.
func (c *Config) validate() []string {
	var errs []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Param() != "" {
					errs = append(errs, fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
				} else {
					errs = append(errs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
				}
			}
		} else {
			errs = append(errs, err.Error())
		}
		// Component checks would only repeat range failures
		return errs
	}

	if c.StartDate != "" {
		c.startDate, _ = time.Parse(dateLayout, c.StartDate)
	}
	if c.EndDate != "" {
		c.endDate, _ = time.Parse(dateLayout, c.EndDate)
	}
	if !c.startDate.IsZero() && !c.endDate.IsZero() && c.endDate.Before(c.startDate) {
		errs = append(errs, "end_date must not be before start_date")
	}

	checks := []func() error{
		c.IndicatorConfig().Validate,
		c.SignalConfig().Validate,
		c.RiskConfig().Validate,
		c.BacktestConfig().Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, strings.TrimPrefix(err.Error(), ports.ErrInvalidConfiguration.Error()+": "))
		}
	}
	return errs
}

// Thresholds returns the classification table shared by the scorer and the engine.
func (c *Config) Thresholds() signals.Thresholds {
	return signals.Thresholds{
		StrongBuy:  c.StrongBuyThreshold,
		Buy:        c.BuyThreshold,
		WeakBuy:    c.WeakBuyThreshold,
		WeakSell:   c.WeakSellThreshold,
		Sell:       c.SellThreshold,
		StrongSell: c.StrongSellThreshold,
	}
}

// IndicatorConfig returns the indicator engine settings.
func (c *Config) IndicatorConfig() indicators.Config {
	ic := indicators.DefaultConfig()
	ic.MinLookback = c.LookbackPeriod
	return ic
}

// SignalConfig returns the scorer settings.
func (c *Config) SignalConfig() signals.Config {
	multipliers := make(map[string]float64, len(c.RegionalMultipliers))
	for symbol, m := range c.RegionalMultipliers {
		multipliers[strings.ToUpper(symbol)] = m
	}
	return signals.Config{
		Window:              c.SignalWindow,
		Weights:             c.Weights,
		Thresholds:          c.Thresholds(),
		RegionalMultipliers: multipliers,
	}
}

// RiskConfig returns the position sizing settings.
func (c *Config) RiskConfig() risk.RiskConfig {
	rc := risk.DefaultRiskConfig()
	rc.BaseRiskPerTrade = c.BaseRiskPerTrade
	rc.MinPositionSize = c.MinPositionSize
	rc.MaxPositionSize = c.MaxPositionSize
	rc.StopLossPct = c.StopLossPct
	rc.TakeProfitPct = c.TakeProfitPct
	rc.StopMultiplier = c.StopMultiplier
	rc.MinStopPct = c.MinStopPct
	rc.MaxStopPct = c.MaxStopPct
	rc.LotSize = c.LotSize
	return rc
}

// BacktestConfig returns the simulation settings.
func (c *Config) BacktestConfig() backtesting.BacktestConfig {
	bc := backtesting.DefaultBacktestConfig()
	bc.InitialCapital = c.InitialCapital
	bc.CommissionRate = c.CommissionRate
	bc.Slippage = c.Slippage
	bc.MaxPositions = c.MaxPositions
	bc.MinTradeAmount = c.MinTradeAmount
	bc.MinSignalStrength = c.MinSignalStrength
	bc.HoldingPeriodMax = c.HoldingPeriodMax
	bc.Workers = c.Workers
	bc.StartDate = c.startDate
	bc.EndDate = c.endDate
	bc.Thresholds = c.Thresholds()
	return bc
}

// AnalyzerConfig returns the performance analysis settings.
func (c *Config) AnalyzerConfig() analytics.AnalyzerConfig {
	ac := analytics.DefaultAnalyzerConfig(c.InitialCapital)
	ac.RiskFreeRate = c.RiskFreeRate
	return ac
}

// Snapshot returns the run-relevant settings as a generic map, as stored with a run.
func (c *Config) Snapshot() map[string]any {
	raw, err := json.Marshal(c)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	delete(out, "data_dir")
	delete(out, "db_path")
	delete(out, "metrics_path")
	return out
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsStringSlice reads a comma-separated list, upper-casing each entry.
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsFloatMap reads SYMBOL:value pairs separated by commas, e.g. "VIC:1.1,HPG:0.9".
// Entries override those already present in defaultValue.
func getEnvAsFloatMap(key string, defaultValue map[string]float64) (map[string]float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	out := make(map[string]float64, len(defaultValue))
	for k, v := range defaultValue {
		out[k] = v
	}
	for _, pair := range strings.Split(valueStr, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("entry %q is not SYMBOL:value", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value '%s' for %s: %w", raw, name, err)
		}
		out[strings.ToUpper(strings.TrimSpace(name))] = value
	}
	return out, nil
}
