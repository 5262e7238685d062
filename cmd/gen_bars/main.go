package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vnEquityBot/config"
	"vnEquityBot/internal/adapters/logger"
	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/utils"
)

// Writes synthetic daily bars, one <SYMBOL>.csv per symbol, for trying out the
// backtester without a market data subscription.
func main() {
	symbols := flag.String("symbols", "FPT,VNM,HPG,MWG,VIC", "comma-separated symbols")
	days := flag.Int("days", 500, "trading days per symbol")
	startStr := flag.String("start", "2022-01-03", "first trading date")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	start, err := time.Parse(utils.DateLayout, *startStr)
	if err != nil {
		log.Fatalf("Invalid start date %q: %v", *startStr, err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		bars := randomWalk(rng, symbol, start, *days)
		filename := filepath.Join(cfg.DataDir, symbol+".csv")
		if err := utils.WriteBarsToCSV(bars, filename); err != nil {
			appLogger.Error(context.Background(), err, "Error writing CSV", map[string]interface{}{"symbol": symbol})
			log.Fatalf("Error writing CSV: %v", err)
		}
		appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename, "bars": len(bars)})
	}
	fmt.Printf("Wrote %s to %s\n", *symbols, cfg.DataDir)
}

// randomWalk draws a geometric random walk on weekdays with drift, volatility and
// volume that vary per symbol. Prices are rounded to the HOSE tick size.
func randomWalk(rng *rand.Rand, symbol string, start time.Time, n int) []domain.Bar {
	price := 10000 + rng.Float64()*90000
	drift := (rng.Float64() - 0.4) * 0.001
	vol := 0.01 + rng.Float64()*0.02
	baseVolume := 200000 + rng.Float64()*3000000

	bars := make([]domain.Bar, 0, n)
	date := start
	for len(bars) < n {
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			date = date.AddDate(0, 0, 1)
			continue
		}
		ret := drift + vol*rng.NormFloat64()
		open := tick(price * (1 + 0.3*vol*rng.NormFloat64()))
		closePrice := tick(price * math.Exp(ret))
		high := tick(math.Max(open, closePrice) * (1 + vol*math.Abs(rng.NormFloat64())/2))
		low := tick(math.Min(open, closePrice) * (1 - vol*math.Abs(rng.NormFloat64())/2))
		volume := math.Round(baseVolume*math.Exp(0.4*rng.NormFloat64()+8*math.Abs(ret))/100) * 100

		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
		price = closePrice
		date = date.AddDate(0, 0, 1)
	}
	return bars
}

// tick rounds to the HOSE price step: 10 below 10,000, 50 below 50,000, else 100.
func tick(p float64) float64 {
	step := 100.0
	switch {
	case p < 10000:
		step = 10
	case p < 50000:
		step = 50
	}
	return math.Max(step, math.Round(p/step)*step)
}
