package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inventory import outcomes.
const (
	ImportOutcomeApplied  = "applied"
	ImportOutcomeDryRun   = "dry_run"
	ImportOutcomeRejected = "rejected"
	ImportOutcomeFailed   = "failed"
)

// InventoryMetrics counts CSV imports and the rows they wrote.
type InventoryMetrics struct {
	imports *prometheus.CounterVec
	rows    *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on reg.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	imports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_imports_total",
		Help: "Inventory CSV imports by outcome.",
	}, []string{"outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_import_rows_total",
		Help: "Products written by inventory imports.",
	}, []string{"action"})
	reg.MustRegister(imports, rows)
	return &InventoryMetrics{imports: imports, rows: rows}
}

// Import records one import attempt with its created and updated counts.
func (m *InventoryMetrics) Import(outcome string, created, updated int) {
	if m == nil || m.imports == nil {
		return
	}
	m.imports.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome != ImportOutcomeApplied {
		return
	}
	m.rows.WithLabelValues("created").Add(float64(created))
	m.rows.WithLabelValues("updated").Add(float64(updated))
}
