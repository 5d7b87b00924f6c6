package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestRecordFeedCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFeedCache(true)
	c.RecordFeedCache(false)
	c.RecordFeedCache(false)

	if got := counterValue(t, reg, "storyline_feed_cache_total", map[string]string{"result": "hit"}); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := counterValue(t, reg, "storyline_feed_cache_total", map[string]string{"result": "miss"}); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestRecordClapsAndWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClaps(50)
	c.RecordClaps(1)
	c.RecordPostWrite("create")
	c.RecordIndexFailure("add")
	c.RecordFeedBuild(10 * time.Millisecond)

	if got := counterValue(t, reg, "storyline_claps_total", nil); got != 51 {
		t.Errorf("claps = %v, want 51", got)
	}
	if got := counterValue(t, reg, "storyline_post_writes_total", map[string]string{"op": "create"}); got != 1 {
		t.Errorf("writes = %v, want 1", got)
	}
	if got := counterValue(t, reg, "storyline_search_index_failures_total", map[string]string{"op": "add"}); got != 1 {
		t.Errorf("index failures = %v, want 1", got)
	}
}
