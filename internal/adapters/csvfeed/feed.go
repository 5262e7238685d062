package csvfeed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
	"vnEquityBot/internal/utils"
)

var _ ports.BarSource = (*Feed)(nil)

// Feed serves daily bars from a directory holding one <SYMBOL>.csv file per symbol.
type Feed struct {
	dir         string
	logger      ports.Logger
	concurrency int
}

// Config holds configuration for the CSV feed.
type Config struct {
	Dir         string
	Logger      ports.Logger
	Concurrency int // Files parsed in parallel; defaults to 4
}

// NewFeed creates a feed over cfg.Dir. The directory must exist.
func NewFeed(cfg Config) (*Feed, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV feed")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("data directory %q: %w: %v", cfg.Dir, ports.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %q is not a directory: %w", cfg.Dir, ports.ErrSourceUnavailable)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Feed{dir: cfg.Dir, logger: cfg.Logger, concurrency: cfg.Concurrency}, nil
}

// Symbols lists every symbol with a CSV file, sorted.
func (f *Feed) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w: %v", f.dir, ports.ErrSourceUnavailable, err)
	}
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// LoadBars reads the requested symbols, or every symbol when none are named. Bars are
// sorted by date; duplicates are left for the engine's validation to reject.
func (f *Feed) LoadBars(ctx context.Context, symbols []string) (map[string][]domain.Bar, error) {
	if len(symbols) == 0 {
		all, err := f.Symbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = all
	}

	var mu sync.Mutex
	out := make(map[string][]domain.Bar, len(symbols))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, symbol := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(symbol))
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return fmt.Errorf("loading %s: %w", symbol, ports.ErrContextCanceled)
			}
			bars, err := f.loadFile(symbol)
			if err != nil {
				return err
			}
			mu.Lock()
			out[symbol] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Error(ctx, err, "Failed to load bars", map[string]interface{}{"dir": f.dir})
		return nil, err
	}

	f.logger.Info(ctx, "Bars loaded", map[string]interface{}{"dir": f.dir, "symbols": len(out)})
	return out, nil
}

func (f *Feed) loadFile(symbol string) ([]domain.Bar, error) {
	path := filepath.Join(f.dir, symbol+".csv")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no data file for %s: %w", symbol, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w: %v", path, ports.ErrSourceUnavailable, err)
	}
	defer file.Close()

	bars, err := utils.ReadBarsFromCSV(file, symbol)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	f.logger.Debug(context.Background(), "Loaded bar file", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}
