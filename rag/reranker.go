package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/SuyashMishr/AyurvaBot/llm/rerank"
)

// ====== 重排能力接口 ======

// QueryDocPair 交叉编码器打分的输入对.
type QueryDocPair struct {
	Query    string
	Document string
}

// CrossEncoderProvider 交叉编码器打分能力.
type CrossEncoderProvider interface {
	// Score 为每个查询-文档对返回相关性分数，长度与输入一致.
	Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error)
}

// Reranker 候选重排序能力.
type Reranker interface {
	// Rerank 重排候选并更新 RerankScore/Score，分数并列时保持输入顺序.
	Rerank(ctx context.Context, query string, candidates []RetrievedChunk) ([]RetrievedChunk, error)
}

// NoopReranker 空实现，原样返回候选.
type NoopReranker struct{}

// Rerank 实现 Reranker.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []RetrievedChunk) ([]RetrievedChunk, error) {
	return candidates, nil
}

// ====== 交叉编码器重排 ======

// CrossEncoderConfig 交叉编码器重排配置.
type CrossEncoderConfig struct {
	MaxCandidates int     `json:"max_candidates"` // 参与重排的候选上限
	BatchSize     int     `json:"batch_size"`     // 打分批大小
	ScoreWeight   float64 `json:"score_weight"`   // 交叉编码器分数权重
	FusedWeight   float64 `json:"fused_weight"`   // 原融合分数权重
	MaxDocChars   int     `json:"max_doc_chars"`  // 送入打分的文档字符上限
}

// DefaultCrossEncoderConfig 返回默认重排配置.
func DefaultCrossEncoderConfig() CrossEncoderConfig {
	return CrossEncoderConfig{
		MaxCandidates: 200,
		BatchSize:     32,
		ScoreWeight:   0.7,
		FusedWeight:   0.3,
		MaxDocChars:   2048,
	}
}

// CrossEncoderReranker 用交叉编码器对融合候选做精排.
// 交叉编码器分数经 sigmoid 压到 (0,1) 后与原融合分数加权混合，
// 保留向量/词面信号的同时让联合打分主导.
type CrossEncoderReranker struct {
	config   CrossEncoderConfig
	provider CrossEncoderProvider
	logger   *zap.Logger
}

// NewCrossEncoderReranker 创建交叉编码器重排器.
func NewCrossEncoderReranker(config CrossEncoderConfig, provider CrossEncoderProvider, logger *zap.Logger) (*CrossEncoderReranker, error) {
	if provider == nil {
		return nil, fmt.Errorf("交叉编码器重排需要打分提供者")
	}
	def := DefaultCrossEncoderConfig()
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = def.MaxCandidates
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.ScoreWeight <= 0 {
		config.ScoreWeight = def.ScoreWeight
	}
	if config.FusedWeight < 0 {
		config.FusedWeight = def.FusedWeight
	}
	if config.MaxDocChars <= 0 {
		config.MaxDocChars = def.MaxDocChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossEncoderReranker{config: config, provider: provider, logger: logger}, nil
}

// Rerank 实现 Reranker.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []RetrievedChunk) ([]RetrievedChunk, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	n := len(candidates)
	if n > r.config.MaxCandidates {
		n = r.config.MaxCandidates
	}

	pairs := make([]QueryDocPair, n)
	for i := 0; i < n; i++ {
		doc := candidates[i].Text
		if len(doc) > r.config.MaxDocChars {
			doc = doc[:r.config.MaxDocChars]
		}
		pairs[i] = QueryDocPair{Query: query, Document: doc}
	}

	scores := make([]float64, 0, n)
	for offset := 0; offset < n; offset += r.config.BatchSize {
		end := offset + r.config.BatchSize
		if end > n {
			end = n
		}
		batch, err := r.provider.Score(ctx, pairs[offset:end])
		if err != nil {
			return nil, fmt.Errorf("交叉编码器打分批次 [%d:%d]: %w", offset, end, err)
		}
		if len(batch) != end-offset {
			return nil, fmt.Errorf("交叉编码器打分批次 [%d:%d]: 期望 %d 个分数，得到 %d 个", offset, end, end-offset, len(batch))
		}
		scores = append(scores, batch...)
	}

	out := make([]RetrievedChunk, len(candidates))
	copy(out, candidates)
	for i := 0; i < n; i++ {
		out[i].RerankScore = scores[i]
		out[i].Score = r.config.ScoreWeight*sigmoid(scores[i]) + r.config.FusedWeight*out[i].Score
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ====== 提供者适配 ======

// rerankProviderScorer 把 rerank.Provider 适配为 CrossEncoderProvider.
// 一批对共享同一查询，直接复用提供者的批量 Rerank 路由.
type rerankProviderScorer struct {
	provider rerank.Provider
}

// NewRerankProviderScorer 从统一重排提供者构造交叉编码器打分能力.
func NewRerankProviderScorer(provider rerank.Provider) CrossEncoderProvider {
	return &rerankProviderScorer{provider: provider}
}

// Score 实现 CrossEncoderProvider.
func (s *rerankProviderScorer) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	query := pairs[0].Query
	docs := make([]string, len(pairs))
	for i, p := range pairs {
		docs[i] = p.Document
	}

	results, err := s.provider.Rerank(ctx, query, docs, 0)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(pairs))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, fmt.Errorf("重排结果下标 %d 越界", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
	}
	return scores, nil
}
