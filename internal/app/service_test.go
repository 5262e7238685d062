package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnEquityBot/config"
	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/optimization"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSource struct {
	bars      map[string][]domain.Bar
	err       error
	requested []string
}

func (m *mockSource) Symbols(ctx context.Context) ([]string, error) {
	return sortedSymbols(m.bars), m.err
}

func (m *mockSource) LoadBars(ctx context.Context, symbols []string) (map[string][]domain.Bar, error) {
	m.requested = symbols
	if m.err != nil {
		return nil, m.err
	}
	if len(symbols) == 0 {
		return m.bars, nil
	}
	out := make(map[string][]domain.Bar)
	for _, s := range symbols {
		b, ok := m.bars[s]
		if !ok {
			return nil, fmt.Errorf("no data file for %s: %w", s, ports.ErrNotFound)
		}
		out[s] = b
	}
	return out, nil
}

type mockRunRepo struct {
	runs    map[string]*domain.BacktestRun
	saveErr error
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]*domain.BacktestRun)}
}

func (m *mockRunRepo) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[run.ID] = run
	return nil
}

func (m *mockRunRepo) FindRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	return m.runs[id], nil
}

func (m *mockRunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	out := make([]*domain.RunSummary, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, &domain.RunSummary{ID: r.ID, CreatedAt: r.CreatedAt, Symbols: r.Symbols, TotalTrades: r.Report.TotalTrades})
	}
	return out, nil
}

func flatBars(symbol string, n int, price float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.003,
			Low:    price * 0.997,
			Close:  price,
			Volume: 500000,
		}
	}
	return bars
}

func newTestService(t *testing.T, source ports.BarSource, repo ports.RunRepository) (*BacktestService, *mockLogger) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	logger := &mockLogger{}
	svc, err := NewBacktestService(cfg, logger, source, repo, nil)
	require.NoError(t, err)
	svc.newID = func() string { return "run-fixed" }
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, logger
}

func TestNewBacktestService(t *testing.T) {
	cfg := config.Default()

	_, err := NewBacktestService(nil, &mockLogger{}, &mockSource{}, nil, nil)
	assert.Error(t, err)
	_, err = NewBacktestService(cfg, nil, &mockSource{}, nil, nil)
	assert.Error(t, err)
	_, err = NewBacktestService(cfg, &mockLogger{}, nil, nil, nil)
	assert.Error(t, err)

	bad := config.Default()
	bad.SignalWindow = 5
	_, err = NewBacktestService(bad, &mockLogger{}, &mockSource{}, nil, nil)
	assert.True(t, errors.Is(err, ports.ErrInvalidConfiguration))

	svc, err := NewBacktestService(cfg, &mockLogger{}, &mockSource{}, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, svc.newID())
}

func TestBacktestService_RunBacktest(t *testing.T) {
	source := &mockSource{bars: map[string][]domain.Bar{
		"FPT": flatBars("FPT", 80, 100000),
		"VNM": flatBars("VNM", 80, 70000),
	}}
	repo := newMockRunRepo()
	svc, logger := newTestService(t, source, repo)

	progressCalls := 0
	out, err := svc.RunBacktest(context.Background(), []string{" fpt", "VNM"}, func(backtesting.Progress) { progressCalls++ })
	require.NoError(t, err)

	assert.Equal(t, []string{"FPT", "VNM"}, source.requested)
	assert.Equal(t, 80, progressCalls)
	assert.Equal(t, "run-fixed", out.Run.ID)
	assert.Equal(t, []string{"FPT", "VNM"}, out.Run.Symbols)
	assert.Equal(t, 0, out.Run.Report.TotalTrades)
	assert.InDelta(t, 1e9, out.Run.Report.FinalEquity, 1e-3)
	assert.Len(t, out.Run.EquityCurve, 80)
	assert.Equal(t, 1e9, out.Run.Config["initial_capital"])

	stored, err := svc.FindRun(context.Background(), "run-fixed")
	require.NoError(t, err)
	assert.Same(t, out.Run, stored)
	assert.Contains(t, logger.infoMsgs, "Backtest completed")
}

func TestBacktestService_RunBacktestErrors(t *testing.T) {
	t.Run("source unavailable", func(t *testing.T) {
		svc, _ := newTestService(t, &mockSource{err: ports.ErrSourceUnavailable}, nil)
		_, err := svc.RunBacktest(context.Background(), nil, nil)
		assert.True(t, errors.Is(err, ports.ErrSourceUnavailable))
	})

	t.Run("empty universe", func(t *testing.T) {
		svc, _ := newTestService(t, &mockSource{bars: map[string][]domain.Bar{}}, nil)
		_, err := svc.RunBacktest(context.Background(), nil, nil)
		assert.True(t, errors.Is(err, ports.ErrInvalidBars))
	})

	t.Run("unordered bars", func(t *testing.T) {
		bars := flatBars("HPG", 60, 25000)
		bars[10], bars[11] = bars[11], bars[10]
		svc, logger := newTestService(t, &mockSource{bars: map[string][]domain.Bar{"HPG": bars}}, nil)
		_, err := svc.RunBacktest(context.Background(), nil, nil)
		assert.True(t, errors.Is(err, ports.ErrInvalidBars))
		assert.Contains(t, logger.errorMsgs, "Backtest failed")
	})

	t.Run("save failure", func(t *testing.T) {
		repo := newMockRunRepo()
		repo.saveErr = ports.ErrDBConnection
		svc, _ := newTestService(t, &mockSource{bars: map[string][]domain.Bar{"FPT": flatBars("FPT", 60, 100000)}}, repo)
		_, err := svc.RunBacktest(context.Background(), nil, nil)
		assert.True(t, errors.Is(err, ports.ErrDBConnection))
	})
}

func TestBacktestService_ScoreLatest(t *testing.T) {
	source := &mockSource{bars: map[string][]domain.Bar{
		"FPT": flatBars("FPT", 80, 100000),
		"NEW": flatBars("NEW", 20, 10000),
	}}
	svc, logger := newTestService(t, source, nil)

	signals, err := svc.ScoreLatest(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "FPT", signals[0].Symbol)
	assert.Equal(t, domain.Hold, signals[0].Classification)
	assert.InDelta(t, 47, signals[0].Score, 1e-9)
	assert.True(t, signals[0].Date.Equal(source.bars["FPT"][79].Date))
	assert.Contains(t, logger.warnMsgs, "Not enough history to score")
}

func TestBacktestService_Optimize(t *testing.T) {
	source := &mockSource{bars: map[string][]domain.Bar{"FPT": flatBars("FPT", 70, 100000)}}
	svc, _ := newTestService(t, source, nil)

	results, err := svc.Optimize(context.Background(), nil, []optimization.ParameterRange{
		{Name: optimization.ParamMaxPositions, Min: 1, Max: 3, Step: 1, IsInt: true},
	}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestBacktestService_RunsWithoutRepository(t *testing.T) {
	svc, _ := newTestService(t, &mockSource{}, nil)

	_, err := svc.ListRuns(context.Background(), 10)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	_, err = svc.FindRun(context.Background(), "x")
	assert.True(t, errors.Is(err, ports.ErrNotFound))

	withRepo, _ := newTestService(t, &mockSource{}, newMockRunRepo())
	_, err = withRepo.FindRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	runs, err := withRepo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
