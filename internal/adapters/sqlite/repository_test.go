package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "vn-equity-bot-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	// Return cleanup function
	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func sampleRun(id string, createdAt time.Time) *domain.BacktestRun {
	pf := 1.8
	return &domain.BacktestRun{
		ID:        id,
		CreatedAt: createdAt,
		Symbols:   []string{"FPT", "VNM"},
		Config: map[string]any{
			"initial_capital": 1e9,
			"max_positions":   float64(10),
			"buy_threshold":   58.0,
		},
		Report: domain.PerformanceReport{
			StartDate:      day(4),
			EndDate:        day(6),
			TradingDays:    3,
			InitialCapital: 1e9,
			FinalEquity:    1.02e9,
			TotalReturn:    0.02,
			SharpeRatio:    1.25,
			MaxDrawdown:    0.01,
			TotalTrades:    2,
			WinningTrades:  1,
			LosingTrades:   1,
			WinRate:        0.5,
			ProfitFactor:   &pf,
			SignalAccuracy: map[domain.Classification]domain.SignalAccuracy{
				domain.Buy: {Trades: 2, Wins: 1, WinRate: 0.5, AvgReturn: 0.01},
			},
			ExitReasons:    map[domain.ExitReason]int{domain.ExitTakeProfit: 1, domain.ExitStopLoss: 1},
			MonthlyReturns: map[string]float64{"2024-03": 0.02},
			Drawdowns:      []domain.DrawdownPeriod{},
			Diagnostics:    []domain.Diagnostic{},
		},
		Trades: []*domain.Trade{
			{
				PositionID: 1, Symbol: "FPT", EntryDate: day(4), ExitDate: day(5),
				EntryPrice: 100000, ExitPrice: 115000, Shares: 500, HoldingDays: 1,
				GrossPnL: 7.5e6, Cost: 250000, NetPnL: 7.25e6, ReturnPct: 0.145, Win: true,
				ExitReason: domain.ExitTakeProfit, PositionSizePct: 0.05, EntryScore: 62.5,
				EntryClassification: domain.Buy,
			},
			{
				PositionID: 2, Symbol: "VNM", EntryDate: day(4), ExitDate: day(6),
				EntryPrice: 70000, ExitPrice: 64400, Shares: 700, HoldingDays: 2,
				GrossPnL: -3.92e6, Cost: 170000, NetPnL: -4.09e6, ReturnPct: -0.0834, Win: false,
				ExitReason: domain.ExitStopLoss, PositionSizePct: 0.049, EntryScore: 59,
				EntryClassification: domain.Buy,
			},
		},
		EquityCurve: []domain.EquityPoint{
			{Date: day(4), Cash: 9e8, PositionsValue: 1e8, Equity: 1e9, Peak: 1e9, OpenPositions: 2},
			{Date: day(5), Cash: 9.6e8, PositionsValue: 4.9e7, Equity: 1.009e9, Peak: 1.009e9, OpenPositions: 1},
			{Date: day(6), Cash: 1.02e9, Equity: 1.02e9, Peak: 1.02e9},
		},
	}
}

func TestRepository_SaveAndFindRun(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Date(2024, time.April, 1, 9, 30, 0, 123456789, time.UTC)
	run := sampleRun("run-1", created)
	require.NoError(t, repo.SaveRun(ctx, run))

	found, err := repo.FindRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, run.ID, found.ID)
	assert.True(t, created.Equal(found.CreatedAt))
	assert.Equal(t, run.Symbols, found.Symbols)
	assert.Equal(t, run.Config, found.Config)
	assert.Equal(t, run.Trades, found.Trades)
	assert.Equal(t, run.EquityCurve, found.EquityCurve)

	assert.Equal(t, run.Report.TotalTrades, found.Report.TotalTrades)
	assert.InDelta(t, run.Report.SharpeRatio, found.Report.SharpeRatio, 1e-12)
	require.NotNil(t, found.Report.ProfitFactor)
	assert.InDelta(t, 1.8, *found.Report.ProfitFactor, 1e-12)
	assert.Equal(t, run.Report.SignalAccuracy, found.Report.SignalAccuracy)
	assert.Equal(t, run.Report.ExitReasons, found.Report.ExitReasons)
	assert.True(t, run.Report.StartDate.Equal(found.Report.StartDate))
}

func TestRepository_FindRunNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	found, err := repo.FindRun(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_SaveRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Repository) error
		run     *domain.BacktestRun
		wantErr error
	}{
		{
			name: "duplicate run id",
			setup: func(r *Repository) error {
				return r.SaveRun(context.Background(), sampleRun("dup", day(1)))
			},
			run:     sampleRun("dup", day(2)),
			wantErr: ports.ErrDuplicateEntry,
		},
		{
			name: "missing id",
			run:  sampleRun("", day(1)),
		},
		{
			name:    "duplicate equity date rolls back",
			run:     withDuplicatePoint(sampleRun("bad-curve", day(1))),
			wantErr: ports.ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, cleanup := setupTestDB(t)
			defer cleanup()

			if tt.setup != nil {
				require.NoError(t, tt.setup(repo))
			}

			err := repo.SaveRun(context.Background(), tt.run)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.run.ID != "" && tt.wantErr == ports.ErrQueryFailed {
				// Nothing from the failed transaction is visible
				found, err := repo.FindRun(context.Background(), tt.run.ID)
				require.NoError(t, err)
				assert.Nil(t, found)
			}
		})
	}
}

func withDuplicatePoint(run *domain.BacktestRun) *domain.BacktestRun {
	run.EquityCurve = append(run.EquityCurve, run.EquityCurve[0])
	return run
}

func TestRepository_ListRuns(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		run.Report.TotalReturn = float64(i) / 100
		require.NoError(t, repo.SaveRun(ctx, run))
	}

	summaries, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "c", summaries[0].ID)
	assert.Equal(t, "b", summaries[1].ID)
	assert.InDelta(t, 0.02, summaries[0].TotalReturn, 1e-12)
	assert.Equal(t, 2, summaries[0].TotalTrades)
	assert.Equal(t, []string{"FPT", "VNM"}, summaries[0].Symbols)

	all, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	empty, cleanupEmpty := setupTestDB(t)
	defer cleanupEmpty()
	none, err := empty.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
