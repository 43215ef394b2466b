package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RecordsRetrievals(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.RecordRetrieval("full", 10*time.Millisecond)
	c.RecordRetrieval("full", 20*time.Millisecond)
	c.RecordRetrieval("degraded", 5*time.Millisecond)

	if got := testutil.ToFloat64(c.retrievalsTotal.WithLabelValues("full")); got != 2 {
		t.Errorf("full 计数 = %v, 期望 2", got)
	}
	if got := testutil.ToFloat64(c.retrievalsTotal.WithLabelValues("degraded")); got != 1 {
		t.Errorf("degraded 计数 = %v, 期望 1", got)
	}
}

func TestCollector_IndexCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	c.IndexCacheHit()
	c.IndexCacheMiss()
	c.IndexCacheMiss()
	c.ObserveIndexBuild(time.Second)
	c.SetChunksIndexed(49)
	c.CorrectivePass()
	c.RerankFallback()

	if got := testutil.ToFloat64(c.indexCacheHits); got != 1 {
		t.Errorf("缓存命中计数 = %v", got)
	}
	if got := testutil.ToFloat64(c.indexCacheMisses); got != 2 {
		t.Errorf("缓存未命中计数 = %v", got)
	}
	if got := testutil.ToFloat64(c.chunksIndexed); got != 49 {
		t.Errorf("块数 gauge = %v", got)
	}
	if got := testutil.ToFloat64(c.correctivePasses); got != 1 {
		t.Errorf("纠偏计数 = %v", got)
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *Collector

	// 任何记录调用都不应 panic.
	c.RecordRetrieval("full", time.Second)
	c.CorrectivePass()
	c.RerankFallback()
	c.IndexCacheHit()
	c.IndexCacheMiss()
	c.ObserveIndexBuild(time.Second)
	c.SetChunksIndexed(1)
}
