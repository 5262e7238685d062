package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00" // fixed width, sorts lexicographically
)

var _ ports.RunRepository = (*Repository)(nil)

// Repository implements the ports.RunRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers; the optimizer saves runs concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		symbols TEXT NOT NULL,
		config_json TEXT NOT NULL,
		report_json TEXT NOT NULL,
		total_return REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		total_trades INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		exit_date TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		shares REAL NOT NULL,
		holding_days INTEGER NOT NULL,
		gross_pnl REAL NOT NULL,
		cost REAL NOT NULL,
		net_pnl REAL NOT NULL,
		return_pct REAL NOT NULL,
		win INTEGER NOT NULL,
		exit_reason TEXT NOT NULL,
		position_size_pct REAL NOT NULL,
		entry_score REAL NOT NULL,
		entry_classification TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS equity_points (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		cash REAL NOT NULL,
		positions_value REAL NOT NULL,
		equity REAL NOT NULL,
		peak REAL NOT NULL,
		drawdown REAL NOT NULL,
		open_positions INTEGER NOT NULL,
		PRIMARY KEY (run_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_run_id ON trades (run_id, id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun stores a run with its trades and equity curve in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config for run %s: %w", run.ID, err)
	}
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report for run %s: %w", run.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w: %v", run.ID, ports.ErrDBConnection, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const insertRun = `
	INSERT INTO runs (id, created_at, symbols, config_json, report_json, total_return, sharpe_ratio, max_drawdown, total_trades)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insertRun,
		run.ID, run.CreatedAt.UTC().Format(timestampLayout), strings.Join(run.Symbols, ","),
		string(configJSON), string(reportJSON),
		run.Report.TotalReturn, run.Report.SharpeRatio, run.Report.MaxDrawdown, run.Report.TotalTrades)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("run %s: %w", run.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert run %s: %w: %v", run.ID, ports.ErrQueryFailed, err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO trades (run_id, position_id, symbol, entry_date, exit_date, entry_price, exit_price, shares,
	                    holding_days, gross_pnl, cost, net_pnl, return_pct, win, exit_reason,
	                    position_size_pct, entry_score, entry_classification)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w: %v", ports.ErrQueryFailed, err)
	}
	defer tradeStmt.Close()
	for _, t := range run.Trades {
		_, err := tradeStmt.ExecContext(ctx,
			run.ID, t.PositionID, t.Symbol, t.EntryDate.Format(dateLayout), t.ExitDate.Format(dateLayout),
			t.EntryPrice, t.ExitPrice, t.Shares, t.HoldingDays, t.GrossPnL, t.Cost, t.NetPnL, t.ReturnPct,
			t.Win, string(t.ExitReason), t.PositionSizePct, t.EntryScore, string(t.EntryClassification))
		if err != nil {
			return fmt.Errorf("failed to insert trade %d of run %s: %w: %v", t.PositionID, run.ID, ports.ErrQueryFailed, err)
		}
	}

	pointStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO equity_points (run_id, date, cash, positions_value, equity, peak, drawdown, open_positions)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w: %v", ports.ErrQueryFailed, err)
	}
	defer pointStmt.Close()
	for _, p := range run.EquityCurve {
		_, err := pointStmt.ExecContext(ctx,
			run.ID, p.Date.Format(dateLayout), p.Cash, p.PositionsValue, p.Equity, p.Peak, p.Drawdown, p.OpenPositions)
		if err != nil {
			return fmt.Errorf("failed to insert equity point %s of run %s: %w: %v", p.Date.Format(dateLayout), run.ID, ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w: %v", run.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Run saved", map[string]interface{}{"runID": run.ID, "trades": len(run.Trades), "points": len(run.EquityCurve)})
	return nil
}

// FindRun retrieves a run by ID. Returns nil, nil if not found.
func (r *Repository) FindRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	const query = `SELECT id, created_at, symbols, config_json, report_json FROM runs WHERE id = ?`

	var createdAt, symbols, configJSON, reportJSON string
	run := &domain.BacktestRun{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &createdAt, &symbols, &configJSON, &reportJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found by ID", map[string]interface{}{"runID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query run %s: %w: %v", id, ports.ErrQueryFailed, err)
	}
	if run.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("run %s has malformed created_at %q: %w", id, createdAt, err)
	}
	run.Symbols = splitSymbols(symbols)
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(reportJSON), &run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %s: %w", id, err)
	}

	if run.Trades, err = r.findTrades(ctx, id); err != nil {
		return nil, err
	}
	if run.EquityCurve, err = r.findEquityCurve(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first, up to a limit.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	const query = `
	SELECT id, created_at, symbols, total_return, sharpe_ratio, max_drawdown, total_trades
	FROM runs ORDER BY created_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	summaries := make([]*domain.RunSummary, 0)
	for rows.Next() {
		s := &domain.RunSummary{}
		var createdAt, symbols string
		if err := rows.Scan(&s.ID, &createdAt, &symbols, &s.TotalReturn, &s.SharpeRatio, &s.MaxDrawdown, &s.TotalTrades); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		if s.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("run %s has malformed created_at %q: %w", s.ID, createdAt, err)
		}
		s.Symbols = splitSymbols(symbols)
		summaries = append(summaries, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return summaries, nil
}

func (r *Repository) findTrades(ctx context.Context, runID string) ([]*domain.Trade, error) {
	const query = `
	SELECT position_id, symbol, entry_date, exit_date, entry_price, exit_price, shares, holding_days,
	       gross_pnl, cost, net_pnl, return_pct, win, exit_reason, position_size_pct, entry_score, entry_classification
	FROM trades WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade of run %s: %w", runID, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

func (r *Repository) findEquityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	const query = `
	SELECT date, cash, positions_value, equity, peak, drawdown, open_positions
	FROM equity_points WHERE run_id = ? ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	points := make([]domain.EquityPoint, 0)
	for rows.Next() {
		var p domain.EquityPoint
		var date string
		if err := rows.Scan(&date, &p.Cash, &p.PositionsValue, &p.Equity, &p.Peak, &p.Drawdown, &p.OpenPositions); err != nil {
			return nil, fmt.Errorf("failed to scan equity point of run %s: %w", runID, err)
		}
		if p.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("equity point of run %s has malformed date %q: %w", runID, date, err)
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity rows: %w", err)
	}
	return points, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var entryDate, exitDate, exitReason, classification string
	err := s.Scan(
		&t.PositionID, &t.Symbol, &entryDate, &exitDate, &t.EntryPrice, &t.ExitPrice, &t.Shares, &t.HoldingDays,
		&t.GrossPnL, &t.Cost, &t.NetPnL, &t.ReturnPct, &t.Win, &exitReason, &t.PositionSizePct, &t.EntryScore, &classification)
	if err != nil {
		return nil, err
	}
	if t.EntryDate, err = time.Parse(dateLayout, entryDate); err != nil {
		return nil, err
	}
	if t.ExitDate, err = time.Parse(dateLayout, exitDate); err != nil {
		return nil, err
	}
	t.ExitReason = domain.ExitReason(exitReason)
	t.EntryClassification = domain.Classification(classification)
	return t, nil
}

func splitSymbols(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
