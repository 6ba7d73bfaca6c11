package store

import "github.com/prometheus/client_golang/prometheus"

// metrics is the object-store and tier metrics surface (SPEC_FULL.md
// "Metrics surface" supplemented feature): put/get counts, cache hit
// ratio, and tier byte totals, registered lazily so multiple Store
// instances in tests don't collide on prometheus's default registry.
type metrics struct {
	puts      prometheus.Counter
	gets      prometheus.Counter
	cacheHit  prometheus.Counter
	cacheMiss prometheus.Counter
	tierBytes *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		puts:      prometheus.NewCounter(prometheus.CounterOpts{Name: "zeta_store_puts_total", Help: "object store put operations"}),
		gets:      prometheus.NewCounter(prometheus.CounterOpts{Name: "zeta_store_gets_total", Help: "object store get operations"}),
		cacheHit:  prometheus.NewCounter(prometheus.CounterOpts{Name: "zeta_store_cache_hits_total", Help: "object cache hits"}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{Name: "zeta_store_cache_misses_total", Help: "object cache misses"}),
		tierBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "zeta_store_tier_bytes", Help: "bytes stored per tier"}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.puts, m.gets, m.cacheHit, m.cacheMiss, m.tierBytes)
	}
	return m
}
