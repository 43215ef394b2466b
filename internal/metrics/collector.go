// Package metrics 提供检索核心的 Prometheus 指标采集.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 检索核心指标集合.
// 所有记录方法对 nil 接收者安全：不需要指标的组件可以直接传 nil.
type Collector struct {
	retrievalsTotal  *prometheus.CounterVec
	retrievalSeconds prometheus.Histogram

	correctivePasses prometheus.Counter
	rerankFallbacks  prometheus.Counter

	indexCacheHits   prometheus.Counter
	indexCacheMisses prometheus.Counter
	indexBuildSecs   prometheus.Histogram
	chunksIndexed    prometheus.Gauge
}

// NewCollector 创建并注册指标集合.
// reg 为 nil 时使用默认注册表.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "ayurvabot"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		retrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "检索总次数，按完成质量分类",
		}, []string{"outcome"}),
		retrievalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "单次检索耗时",
			Buckets:   prometheus.DefBuckets,
		}),
		correctivePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrective_passes_total",
			Help:      "纠偏第二遍检索触发次数",
		}),
		rerankFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "重排失败退回融合分数的次数",
		}),
		indexCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_hits_total",
			Help:      "持久化索引复用次数",
		}),
		indexCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_misses_total",
			Help:      "持久化索引未命中（触发重建）次数",
		}),
		indexBuildSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "索引全量重建耗时",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		chunksIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_indexed",
			Help:      "当前索引内的块数量",
		}),
	}

	reg.MustRegister(
		c.retrievalsTotal,
		c.retrievalSeconds,
		c.correctivePasses,
		c.rerankFallbacks,
		c.indexCacheHits,
		c.indexCacheMisses,
		c.indexBuildSecs,
		c.chunksIndexed,
	)
	return c
}

// RecordRetrieval 记录一次检索及其完成质量.
func (c *Collector) RecordRetrieval(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.retrievalsTotal.WithLabelValues(outcome).Inc()
	c.retrievalSeconds.Observe(elapsed.Seconds())
}

// CorrectivePass 记录一次纠偏第二遍.
func (c *Collector) CorrectivePass() {
	if c == nil {
		return
	}
	c.correctivePasses.Inc()
}

// RerankFallback 记录一次重排失败降级.
func (c *Collector) RerankFallback() {
	if c == nil {
		return
	}
	c.rerankFallbacks.Inc()
}

// IndexCacheHit 记录一次持久化索引复用.
func (c *Collector) IndexCacheHit() {
	if c == nil {
		return
	}
	c.indexCacheHits.Inc()
}

// IndexCacheMiss 记录一次持久化索引未命中.
func (c *Collector) IndexCacheMiss() {
	if c == nil {
		return
	}
	c.indexCacheMisses.Inc()
}

// ObserveIndexBuild 记录一次索引重建耗时.
func (c *Collector) ObserveIndexBuild(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.indexBuildSecs.Observe(elapsed.Seconds())
}

// SetChunksIndexed 更新当前索引块数.
func (c *Collector) SetChunksIndexed(n int) {
	if c == nil {
		return
	}
	c.chunksIndexed.Set(float64(n))
}
