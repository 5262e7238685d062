package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

// DateLayout is the calendar date format used by every CSV file.
const DateLayout = "2006-01-02"

var barColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadBarsFromCSV parses daily bars for one symbol. The header must name the columns
// date, open, high, low, close and volume; their order and any extra columns are free.
// Rows are returned in file order.
func ReadBarsFromCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file: %w", symbol, ports.ErrMalformedData)
		}
		return nil, fmt.Errorf("%s: reading header: %w: %v", symbol, ports.ErrMalformedData, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make([]int, len(barColumns))
	for i, name := range barColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing column %q: %w", symbol, name, ports.ErrMalformedData)
		}
		cols[i] = pos
	}

	bars := make([]domain.Bar, 0, 256)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w: %v", symbol, line, ports.ErrMalformedData, err)
		}

		date, err := time.Parse(DateLayout, strings.TrimSpace(record[cols[0]]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad date %q: %w", symbol, line, record[cols[0]], ports.ErrMalformedData)
		}
		var values [5]float64
		for i := range values {
			raw := strings.TrimSpace(record[cols[i+1]])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad %s %q: %w", symbol, line, barColumns[i+1], raw, ports.ErrMalformedData)
			}
			values[i] = v
		}
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   date,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}
	return bars, nil
}

// WriteBarsToCSV writes bars in the format ReadBarsFromCSV accepts.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	return writeCSV(filename, barColumns, len(bars), func(i int) []string {
		b := bars[i]
		return []string{
			b.Date.Format(DateLayout),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
	})
}

// WriteTradesToCSV writes the trade log, one closed position per row.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	header := []string{
		"position_id", "symbol", "entry_date", "exit_date", "entry_price", "exit_price", "shares",
		"holding_days", "gross_pnl", "cost", "net_pnl", "return_pct", "win", "exit_reason",
		"position_size_pct", "entry_score", "entry_classification",
	}
	return writeCSV(filename, header, len(trades), func(i int) []string {
		t := trades[i]
		return []string{
			strconv.FormatInt(t.PositionID, 10),
			t.Symbol,
			t.EntryDate.Format(DateLayout),
			t.ExitDate.Format(DateLayout),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Shares),
			strconv.Itoa(t.HoldingDays),
			formatFloat(t.GrossPnL),
			formatFloat(t.Cost),
			formatFloat(t.NetPnL),
			formatFloat(t.ReturnPct),
			strconv.FormatBool(t.Win),
			string(t.ExitReason),
			formatFloat(t.PositionSizePct),
			formatFloat(t.EntryScore),
			string(t.EntryClassification),
		}
	})
}

// WriteEquityCurveToCSV writes one row per simulated day.
func WriteEquityCurveToCSV(curve []domain.EquityPoint, filename string) error {
	header := []string{"date", "cash", "positions_value", "equity", "peak", "drawdown", "open_positions"}
	return writeCSV(filename, header, len(curve), func(i int) []string {
		p := curve[i]
		return []string{
			p.Date.Format(DateLayout),
			formatFloat(p.Cash),
			formatFloat(p.PositionsValue),
			formatFloat(p.Equity),
			formatFloat(p.Peak),
			formatFloat(p.Drawdown),
			strconv.Itoa(p.OpenPositions),
		}
	})
}

func writeCSV(filename string, header []string, n int, row func(int) []string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
