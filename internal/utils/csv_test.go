package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBarsFromCSV(t *testing.T) {
	input := "Date, Open,High,Low,Close,Volume,adj\n" +
		"2024-01-02,100,105,99,104,1500000,1\n" +
		"2024-01-03, 104,106,101,102.5,900000,1\n"

	bars, err := ReadBarsFromCSV(strings.NewReader(input), "FPT")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, domain.Bar{
		Symbol: "FPT",
		Date:   time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC),
		Open:   104, High: 106, Low: 101, Close: 102.5, Volume: 900000,
	}, bars[1])
}

func TestReadBarsFromCSV_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"missing column", "date,open,high,low,close\n2024-01-02,1,1,1,1\n"},
		{"bad date", "date,open,high,low,close,volume\n02/01/2024,1,1,1,1,1\n"},
		{"bad number", "date,open,high,low,close,volume\n2024-01-02,1,x,1,1,1\n"},
		{"short row", "date,open,high,low,close,volume\n2024-01-02,1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBarsFromCSV(strings.NewReader(tt.input), "VNM")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrMalformedData), "got %v", err)
		})
	}
}

func TestWriteBarsToCSV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HPG.csv")
	bars := []domain.Bar{
		{Symbol: "HPG", Date: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Open: 28150, High: 28600, Low: 28000, Close: 28450, Volume: 21000000},
		{Symbol: "HPG", Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), Open: 28450, High: 28500, Low: 27900, Close: 27950, Volume: 18500000},
	}
	require.NoError(t, WriteBarsToCSV(bars, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadBarsFromCSV(f, "HPG")
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestWriteTradesAndEquityCurve(t *testing.T) {
	dir := t.TempDir()
	trades := []*domain.Trade{{
		PositionID: 7, Symbol: "MWG", EntryDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		ExitDate: time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC), EntryPrice: 45000, ExitPrice: 51750,
		Shares: 1000, HoldingDays: 5, NetPnL: 6.6e6, ReturnPct: 0.1467, Win: true,
		ExitReason: domain.ExitTakeProfit, EntryScore: 71, EntryClassification: domain.StrongBuy,
	}}
	curve := []domain.EquityPoint{
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Cash: 955e6, PositionsValue: 45e6, Equity: 1e9, Peak: 1e9, OpenPositions: 1},
	}

	tradesPath := filepath.Join(dir, "trades.csv")
	curvePath := filepath.Join(dir, "equity.csv")
	require.NoError(t, WriteTradesToCSV(trades, tradesPath))
	require.NoError(t, WriteEquityCurveToCSV(curve, curvePath))

	raw, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "position_id,symbol,entry_date"))
	assert.Equal(t, "7,MWG,2024-02-01,2024-02-09,45000,51750,1000,5,0,0,6600000,0.1467,true,take_profit,0,71,STRONG_BUY", lines[1])

	raw, err = os.ReadFile(curvePath)
	require.NoError(t, err)
	assert.Equal(t, "date,cash,positions_value,equity,peak,drawdown,open_positions\n2024-02-01,955000000,45000000,1000000000,1000000000,0,1\n", string(raw))
}
