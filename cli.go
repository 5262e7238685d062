package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vnEquityBot/config"
	"vnEquityBot/internal/adapters/logger"
	"vnEquityBot/internal/strategy/analytics"
	"vnEquityBot/internal/strategy/backtesting"
	"vnEquityBot/internal/strategy/optimization"
	"vnEquityBot/internal/utils"
)

// globalOptions are flags shared by every command; set flags override configuration.
type globalOptions struct {
	scenario string
	dataDir  string
	dbPath   string
	logLevel string
	symbols  []string
}

func (o *globalOptions) apply(cfg *config.Config) {
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = logger.ParseLevel(o.logLevel)
	}
	if len(o.symbols) > 0 {
		cfg.Symbols = o.symbols
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "vnequitybot",
		Short:        "Signal-driven backtester for Vietnamese equities",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.scenario, "scenario", "", "YAML scenario file (default $SCENARIO_PATH)")
	pf.StringVar(&opts.dataDir, "data", "", "directory of <SYMBOL>.csv files (default $DATA_DIR)")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite run database (default $DB_PATH)")
	pf.StringVar(&opts.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	pf.StringSliceVar(&opts.symbols, "symbols", nil, "symbols to load (default: configured or all)")

	root.AddCommand(newBacktestCmd(opts), newScoreCmd(opts), newOptimizeCmd(opts), newRunsCmd(opts))
	return root
}

func newBacktestCmd(opts *globalOptions) *cobra.Command {
	var out, tradesPath, equityPath, metricsOut string
	var noSave bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate the strategy over historical bars and store the run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts, !noSave, metricsOut != "")
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			progress := func(p backtesting.Progress) {
				if p.Day%50 == 0 || p.Day == p.TotalDays {
					rt.logger.Debug(ctx, "Backtest progress", map[string]interface{}{
						"day": p.Day, "of": p.TotalDays, "date": p.Date.Format(utils.DateLayout), "equity": p.Equity,
					})
				}
			}
			output, err := rt.service.RunBacktest(ctx, nil, progress)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", output.Run.ID, analytics.Summary(output.Run.Report))
			if len(output.Result.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d qualifying entries skipped\n", len(output.Result.Skipped))
			}

			if out != "" {
				if err := writeJSON(out, output.Run.Report); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}
			if tradesPath != "" {
				if err := utils.WriteTradesToCSV(output.Run.Trades, tradesPath); err != nil {
					return fmt.Errorf("writing trades: %w", err)
				}
			}
			if equityPath != "" {
				if err := utils.WriteEquityCurveToCSV(output.Run.EquityCurve, equityPath); err != nil {
					return fmt.Errorf("writing equity curve: %w", err)
				}
			}
			if metricsOut != "" {
				if err := rt.metrics.WriteTextfile(metricsOut); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&out, "out", "", "write the performance report as JSON")
	f.StringVar(&tradesPath, "trades", "", "write the trade log as CSV")
	f.StringVar(&equityPath, "equity", "", "write the equity curve as CSV")
	f.StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics in textfile format")
	f.BoolVar(&noSave, "no-save", false, "do not store the run in the database")
	return cmd
}

func newScoreCmd(opts *globalOptions) *cobra.Command {
	var top int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every symbol on its latest bar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts, false, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			signals, err := rt.service.ScoreLatest(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if top > 0 && len(signals) > top {
				signals = signals[:top]
			}
			if asJSON {
				return encodeJSON(cmd.OutOrStdout(), signals)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tDATE\tSCORE\tSTRENGTH\tSIGNAL\tACTION")
			for _, s := range signals {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%.2f\t%s\t%s\n", s.Symbol, s.Date.Format(utils.DateLayout), s.Score, s.Strength, s.Classification, s.Action)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "show only the N strongest signals")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print signals as JSON with component detail")
	return cmd
}

func newOptimizeCmd(opts *globalOptions) *cobra.Command {
	var rawRanges []string
	var top, concurrency int
	var out string

	cmd := &cobra.Command{
		Use:     "optimize",
		Short:   "Grid-search backtest parameters and rank them by Sharpe ratio",
		Example: "  vnequitybot optimize --range buy_threshold=55:65:5 --range max_positions=5:10:5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranges := make([]optimization.ParameterRange, 0, len(rawRanges))
			for _, raw := range rawRanges {
				r, err := optimization.ParseRange(raw)
				if err != nil {
					return err
				}
				ranges = append(ranges, r)
			}

			rt, err := setup(opts, false, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			results, err := rt.service.Optimize(cmd.Context(), nil, ranges, concurrency)
			if err != nil {
				return err
			}
			if out != "" {
				if err := writeJSON(out, results); err != nil {
					return fmt.Errorf("writing results: %w", err)
				}
			}
			if top > 0 && len(results) > top {
				results = results[:top]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tSCORE\tRETURN\tMAX DD\tTRADES\tPARAMETERS")
			for i, r := range results {
				fmt.Fprintf(w, "%d\t%.3f\t%.2f%%\t%.2f%%\t%d\t%s\n", i+1, r.Score, 100*r.Report.TotalReturn, 100*r.Report.MaxDrawdown, r.Report.TotalTrades, formatParams(r.Parameters))
			}
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&rawRanges, "range", nil, "parameter range name=min:max:step (repeatable; default grid when omitted)")
	f.IntVar(&top, "top", 10, "show the N best combinations")
	f.IntVar(&concurrency, "concurrency", 4, "backtests run in parallel")
	f.StringVar(&out, "out", "", "write every result as JSON")
	return cmd
}

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored backtest runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts, true, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			runs, err := rt.service.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSYMBOLS\tRETURN\tSHARPE\tMAX DD\tTRADES")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f%%\t%.2f\t%.2f%%\t%d\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), len(r.Symbols), 100*r.TotalReturn, r.SharpeRatio, 100*r.MaxDrawdown, r.TotalTrades)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(opts, true, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.service.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return encodeJSON(cmd.OutOrStdout(), run)
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func formatParams(params map[string]float64) string {
	parts := make([]string, 0, len(params))
	for _, name := range []string{
		optimization.ParamBuyThreshold, optimization.ParamSellThreshold, optimization.ParamHoldingPeriodMax,
		optimization.ParamStopMultiplier, optimization.ParamMaxPositions, optimization.ParamMinSignalStrength,
		optimization.ParamMaxPositionSize,
	} {
		if v, ok := params[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", name, v))
		}
	}
	return strings.Join(parts, " ")
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
