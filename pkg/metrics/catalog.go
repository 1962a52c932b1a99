package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics tracks the normalized catalog cache and data quality.
type CatalogMetrics struct {
	cache    *prometheus.CounterVec
	unmapped *prometheus.CounterVec
}

// NewCatalogMetrics registers catalog metrics on reg. A nil registerer yields no-op metrics.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Normalized catalog cache lookups by result.",
	}, []string{"result"})
	unmapped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_unmapped_categories_total",
		Help: "Products whose category did not map to a canonical category.",
	}, []string{"category"})
	reg.MustRegister(cache, unmapped)
	return &CatalogMetrics{cache: cache, unmapped: unmapped}
}

func (m *CatalogMetrics) CacheHit() {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues("hit").Inc()
}

func (m *CatalogMetrics) CacheMiss() {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}

// UnmappedCategory counts a raw category value that passed through unchanged.
func (m *CatalogMetrics) UnmappedCategory(category string) {
	if m == nil || m.unmapped == nil {
		return
	}
	m.unmapped.WithLabelValues(normalizeLabel(category)).Inc()
}
