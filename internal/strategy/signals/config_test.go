package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		score float64
		want  domain.Classification
	}{
		{100, domain.StrongBuy},
		{70, domain.StrongBuy},
		{69.9, domain.Buy},
		{58, domain.Buy},
		{57.9, domain.WeakBuy},
		{52, domain.WeakBuy},
		{51.9, domain.Hold},
		{47, domain.Hold},
		{45.1, domain.Hold},
		{45, domain.WeakSell},
		{38.1, domain.WeakSell},
		{38, domain.Sell},
		{25.1, domain.Sell},
		{25, domain.StrongSell},
		{0, domain.StrongSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %v", tt.score)
	}
}

func TestThresholds_ClassifyIsMonotonic(t *testing.T) {
	th := DefaultThresholds()
	prev := th.Classify(0).Rank()
	for s := 0.0; s <= 100; s += 0.25 {
		rank := th.Classify(s).Rank()
		require.GreaterOrEqual(t, rank, prev, "classification rank dropped at score %v", s)
		prev = rank
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window too small", func(c *Config) { c.Window = 10 }},
		{"weights do not sum to one", func(c *Config) { c.Weights.Volume = 0.5 }},
		{"negative weight", func(c *Config) { c.Weights.Volume = -0.05; c.Weights.PriceAction = 0.55 }},
		{"buy below weak buy", func(c *Config) { c.Thresholds.Buy = 50 }},
		{"sell above weak sell", func(c *Config) { c.Thresholds.Sell = 46 }},
		{"strong buy above 100", func(c *Config) { c.Thresholds.StrongBuy = 101 }},
		{"zero regional multiplier", func(c *Config) { c.RegionalMultipliers = map[string]float64{"VNM": 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestAction(t *testing.T) {
	for _, c := range []domain.Classification{domain.StrongBuy, domain.Buy, domain.WeakBuy, domain.Hold, domain.WeakSell, domain.Sell, domain.StrongSell} {
		assert.NotEmpty(t, Action(c), string(c))
	}
}
