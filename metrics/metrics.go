// Package metrics exposes Prometheus counters for the store, the feed cache
// and search index sync. HTTP request metrics come from echoprometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is what the services record into.
type MetricsCollector interface {
	RecordFeedCache(hit bool)
	RecordFeedBuild(duration time.Duration)
	RecordIndexFailure(op string)
	RecordPostWrite(op string)
	RecordClaps(amount int)
}

// Collector is the Prometheus implementation.
type Collector struct {
	feedCache     *prometheus.CounterVec
	feedBuild     prometheus.Histogram
	indexFailures *prometheus.CounterVec
	postWrites    *prometheus.CounterVec
	claps         prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_feed_cache_total",
			Help: "Home feed cache lookups by result.",
		}, []string{"result"}),
		feedBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyline_feed_build_seconds",
			Help:    "Time spent rebuilding the home feed.",
			Buckets: prometheus.DefBuckets,
		}),
		indexFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_search_index_failures_total",
			Help: "Search index calls that failed, by operation.",
		}, []string{"op"}),
		postWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyline_post_writes_total",
			Help: "Persisted post mutations, by operation.",
		}, []string{"op"}),
		claps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyline_claps_total",
			Help: "Claps added across all posts.",
		}),
	}

	reg.MustRegister(
		c.feedCache,
		c.feedBuild,
		c.indexFailures,
		c.postWrites,
		c.claps,
	)
	return c
}

func (c *Collector) RecordFeedCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.feedCache.WithLabelValues(result).Inc()
}

func (c *Collector) RecordFeedBuild(duration time.Duration) {
	c.feedBuild.Observe(duration.Seconds())
}

func (c *Collector) RecordIndexFailure(op string) {
	c.indexFailures.WithLabelValues(op).Inc()
}

func (c *Collector) RecordPostWrite(op string) {
	c.postWrites.WithLabelValues(op).Inc()
}

func (c *Collector) RecordClaps(amount int) {
	c.claps.Add(float64(amount))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFeedCache(bool)          {}
func (Nop) RecordFeedBuild(time.Duration) {}
func (Nop) RecordIndexFailure(string)     {}
func (Nop) RecordPostWrite(string)        {}
func (Nop) RecordClaps(int)               {}
