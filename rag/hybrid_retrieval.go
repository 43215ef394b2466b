package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SuyashMishr/AyurvaBot/internal/metrics"
	"github.com/SuyashMishr/AyurvaBot/llm/embedding"
)

// ====== 配置 ======

// HybridRetrievalConfig 混合检索配置.
type HybridRetrievalConfig struct {
	TopK            int     `json:"top_k"`            // 默认返回条数
	OverfetchFactor int     `json:"overfetch_factor"` // 向量候选超取倍数
	SimilarityFloor float64 `json:"similarity_floor"` // 向量相似度下限，低于则丢弃

	VectorWeight  float64 `json:"vector_weight"`  // 向量相似度权重
	LexicalWeight float64 `json:"lexical_weight"` // 词面覆盖率权重
	EntityWeight  float64 `json:"entity_weight"`  // 领域实体交集权重

	UseReranking bool `json:"use_reranking"` // 是否启用交叉编码器精排
}

// DefaultHybridRetrievalConfig 返回默认混合检索配置.
func DefaultHybridRetrievalConfig() HybridRetrievalConfig {
	return HybridRetrievalConfig{
		TopK:            7,
		OverfetchFactor: 3,
		SimilarityFloor: 0.3,
		VectorWeight:    0.6,
		LexicalWeight:   0.25,
		EntityWeight:    0.15,
		UseReranking:    true,
	}
}

// ====== 混合检索器 ======

// HybridRetriever 向量 + 词面 + 实体三信号加权融合检索.
// 只读取当前索引与语料，不拥有也不修改它们；可并发调用.
//
// 降级规则：重排失败退回融合分数并标注 Degraded；
// 空查询/空语料/无命中返回 Empty，都不算错误.
// 只有嵌入提供者对查询向量化失败才向上传播错误.
type HybridRetriever struct {
	config   HybridRetrievalConfig
	store    *VectorIndexStore
	corpus   *Corpus
	provider embedding.Provider
	expander *QueryExpander
	reranker Reranker
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewHybridRetriever 创建混合检索器.
// reranker 为 nil 时等价于关闭重排.
func NewHybridRetriever(
	config HybridRetrievalConfig,
	store *VectorIndexStore,
	corpus *Corpus,
	provider embedding.Provider,
	expander *QueryExpander,
	reranker Reranker,
	collector *metrics.Collector,
	logger *zap.Logger,
) (*HybridRetriever, error) {
	if store == nil {
		return nil, fmt.Errorf("混合检索需要索引存储")
	}
	if corpus == nil {
		return nil, fmt.Errorf("混合检索需要语料")
	}
	if provider == nil {
		return nil, fmt.Errorf("混合检索需要嵌入提供者")
	}
	def := DefaultHybridRetrievalConfig()
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if config.OverfetchFactor <= 0 {
		config.OverfetchFactor = def.OverfetchFactor
	}
	if config.VectorWeight <= 0 && config.LexicalWeight <= 0 && config.EntityWeight <= 0 {
		config.VectorWeight = def.VectorWeight
		config.LexicalWeight = def.LexicalWeight
		config.EntityWeight = def.EntityWeight
	}
	if expander == nil {
		expander = NewQueryExpander(DefaultQueryExpanderConfig(), nil, logger)
	}
	if reranker == nil {
		config.UseReranking = false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		config:   config,
		store:    store,
		corpus:   corpus,
		provider: provider,
		expander: expander,
		reranker: reranker,
		metrics:  collector,
		logger:   logger,
	}, nil
}

// Retrieve 执行一次混合检索.
// topK <= 0 时使用配置默认值.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	start := time.Now()
	result, err := r.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRetrieval(string(result.Outcome), time.Since(start))
	return result, nil
}

func (r *HybridRetriever) retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = r.config.TopK
	}

	normalized := r.expander.Normalize(query)
	if normalized == "" {
		return &RetrievalResult{Outcome: OutcomeEmpty}, nil
	}
	idx, ok := r.store.Current()
	if !ok || r.corpus.Len() == 0 {
		r.logger.Warn("索引或语料为空，返回空结果")
		return &RetrievalResult{Outcome: OutcomeEmpty}, nil
	}

	qvec, err := r.provider.EmbedQuery(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("查询向量化: %w", err)
	}
	q32 := Float64sTo32(qvec)
	NormalizeL2(q32)

	hits, err := idx.Search(q32, topK*r.config.OverfetchFactor)
	if err != nil {
		return nil, fmt.Errorf("向量检索: %w", err)
	}

	expansion := r.expander.Expand(query)
	candidates := r.fuse(hits, expansion)
	if len(candidates) == 0 {
		return &RetrievalResult{Outcome: OutcomeEmpty}, nil
	}

	outcome := OutcomeFull
	if r.config.UseReranking && r.reranker != nil {
		reranked, rerr := r.reranker.Rerank(ctx, normalized, candidates)
		if rerr != nil {
			// 精排失败退回融合分数，检索本身不失败.
			r.metrics.RerankFallback()
			r.logger.Warn("重排失败，退回融合分数", zap.Error(rerr))
			outcome = OutcomeDegraded
		} else {
			candidates = reranked
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return &RetrievalResult{Chunks: candidates, Outcome: outcome}, nil
}

// fuse 对向量候选叠加词面覆盖率与领域实体交集信号.
// 向量分低于 SimilarityFloor 的候选直接丢弃；
// 融合分并列时保持向量检索顺序（sort 稳定 + 输入已按向量分降序）.
func (r *HybridRetriever) fuse(hits []SearchResult, expansion Expansion) []RetrievedChunk {
	queryTokens := expansion.Tokens

	candidates := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.ID < 0 || hit.ID >= r.corpus.Len() {
			continue
		}
		if hit.Score < r.config.SimilarityFloor {
			continue
		}
		chunk := r.corpus.Chunks[hit.ID]

		lexical := lexicalCoverage(queryTokens, chunk.Text)
		boost := entityOverlap(expansion.DomainTerms, chunk.Entities.Gazetteer)

		candidates = append(candidates, RetrievedChunk{
			Chunk:        chunk,
			VectorScore:  hit.Score,
			LexicalScore: lexical,
			EntityBoost:  boost,
			Score: r.config.VectorWeight*hit.Score +
				r.config.LexicalWeight*lexical +
				r.config.EntityWeight*boost,
		})
	}
	// 输入按向量分降序，稳定排序保证并列时向量顺序不变.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	return candidates
}

// lexicalCoverage 查询 token 在块文本中出现的比例.
func lexicalCoverage(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hit := 0
	for _, tok := range queryTokens {
		if strings.Contains(lower, tok) {
			hit++
		}
	}
	return float64(hit) / float64(len(queryTokens))
}

// entityOverlap 查询领域词与块词表实体的交集比例.
func entityOverlap(queryTerms, chunkTerms []string) float64 {
	if len(queryTerms) == 0 || len(chunkTerms) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(chunkTerms))
	for _, t := range chunkTerms {
		set[t] = struct{}{}
	}
	hit := 0
	for _, t := range queryTerms {
		if _, ok := set[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(queryTerms))
}
