package cache

import "github.com/prometheus/client_golang/prometheus"

// StatsProvider exposes cache counters.
type StatsProvider interface {
	Stats() Stats
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// Stats implements StatsProvider.
func (f StatsFunc) Stats() Stats {
	return f()
}

// Collector adapts a StatsProvider to prometheus.Collector so embedding
// applications can register cache counters on their own registry.
type Collector struct {
	provider StatsProvider

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	promotions *prometheus.Desc
	flips      *prometheus.Desc
	hotSize    *prometheus.Desc
	coldSize   *prometheus.Desc
}

// NewCollector builds a collector labelled with cache=name.
func NewCollector(name string, provider StatsProvider) *Collector {
	labels := prometheus.Labels{"cache": name}
	return &Collector{
		provider:   provider,
		hits:       prometheus.NewDesc("props_cache_hits_total", "Two-layer cache hits.", nil, labels),
		misses:     prometheus.NewDesc("props_cache_misses_total", "Two-layer cache misses.", nil, labels),
		promotions: prometheus.NewDesc("props_cache_promotions_total", "Entries copied from cold to hot.", nil, labels),
		flips:      prometheus.NewDesc("props_cache_flips_total", "Hot generation flips.", nil, labels),
		hotSize:    prometheus.NewDesc("props_cache_hot_entries", "Entries in the hot generation.", nil, labels),
		coldSize:   prometheus.NewDesc("props_cache_cold_entries", "Entries in the cold generation.", nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.promotions
	ch <- c.flips
	ch <- c.hotSize
	ch <- c.coldSize
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.provider == nil {
		return
	}
	stats := c.provider.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.promotions, prometheus.CounterValue, float64(stats.Promotions))
	ch <- prometheus.MustNewConstMetric(c.flips, prometheus.CounterValue, float64(stats.Flips))
	ch <- prometheus.MustNewConstMetric(c.hotSize, prometheus.GaugeValue, float64(stats.HotSize))
	ch <- prometheus.MustNewConstMetric(c.coldSize, prometheus.GaugeValue, float64(stats.ColdSize))
}
