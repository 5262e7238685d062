package backtesting

import (
	"time"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/observability"
)

type diagKey struct {
	kind    domain.DiagnosticKind
	symbol  string
	message string
}

// diagnostics folds repeated problems into one entry per (kind, symbol, message).
type diagnostics struct {
	entries []domain.Diagnostic
	index   map[diagKey]int
	metrics *observability.Metrics
}

func newDiagnostics(metrics *observability.Metrics) *diagnostics {
	return &diagnostics{index: make(map[diagKey]int), metrics: metrics}
}

func (d *diagnostics) add(kind domain.DiagnosticKind, symbol, message string, date time.Time) {
	d.metrics.RecordDiagnostic(kind)
	key := diagKey{kind: kind, symbol: symbol, message: message}
	if i, ok := d.index[key]; ok {
		e := &d.entries[i]
		e.Count++
		if date.Before(e.FirstDate) {
			e.FirstDate = date
		}
		if date.After(e.LastDate) {
			e.LastDate = date
		}
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, domain.Diagnostic{
		Kind:      kind,
		Symbol:    symbol,
		Message:   message,
		FirstDate: date,
		LastDate:  date,
		Count:     1,
	})
}

func (d *diagnostics) list() []domain.Diagnostic {
	return append([]domain.Diagnostic(nil), d.entries...)
}
