package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/SuyashMishr/AyurvaBot/internal/metrics"
)

// ====== 配置 ======

// CorrectiveConfig 纠偏检索配置.
type CorrectiveConfig struct {
	MinStrongResults int    `json:"min_strong_results"` // 弱结果判定的绝对下限
	WeakDivisor      int    `json:"weak_divisor"`       // 弱结果判定的 topK 除数
	MaxVariants      int    `json:"max_variants"`       // 第二遍查询变体上限
	MergePrefixChars int    `json:"merge_prefix_chars"` // 合并去重的文本前缀长度
	BroadenSuffix    string `json:"broaden_suffix"`     // 拓宽原查询的追加后缀
}

// DefaultCorrectiveConfig 返回默认纠偏配置.
func DefaultCorrectiveConfig() CorrectiveConfig {
	return CorrectiveConfig{
		MinStrongResults: 3,
		WeakDivisor:      2,
		MaxVariants:      4,
		MergePrefixChars: 200,
		BroadenSuffix:    " detailed clinical context",
	}
}

// ====== 纠偏控制器 ======

// CorrectiveRetrievalController 包装混合检索器，对弱结果做有界的第二遍检索.
// 弱结果判定：命中数 < max(MinStrongResults, topK/WeakDivisor).
// 第二遍用拓宽后缀 + 多查询变体重查，与第一遍结果按文本前缀合并去重，
// 每个块保留各遍中的最高分. 最多两遍，从不递归.
type CorrectiveRetrievalController struct {
	config    CorrectiveConfig
	retriever *HybridRetriever
	expander  *QueryExpander
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewCorrectiveRetrievalController 创建纠偏控制器.
func NewCorrectiveRetrievalController(
	config CorrectiveConfig,
	retriever *HybridRetriever,
	expander *QueryExpander,
	collector *metrics.Collector,
	logger *zap.Logger,
) (*CorrectiveRetrievalController, error) {
	if retriever == nil {
		return nil, fmt.Errorf("纠偏控制器需要混合检索器")
	}
	def := DefaultCorrectiveConfig()
	if config.MinStrongResults <= 0 {
		config.MinStrongResults = def.MinStrongResults
	}
	if config.WeakDivisor <= 0 {
		config.WeakDivisor = def.WeakDivisor
	}
	if config.MaxVariants <= 0 {
		config.MaxVariants = def.MaxVariants
	}
	if config.MergePrefixChars <= 0 {
		config.MergePrefixChars = def.MergePrefixChars
	}
	if config.BroadenSuffix == "" {
		config.BroadenSuffix = def.BroadenSuffix
	}
	if expander == nil {
		expander = NewQueryExpander(DefaultQueryExpanderConfig(), nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorrectiveRetrievalController{
		config:    config,
		retriever: retriever,
		expander:  expander,
		metrics:   collector,
		logger:    logger,
	}, nil
}

// Retrieve 执行至多两遍检索.
// 第一遍出错直接向上传播；第二遍各变体尽力而为，单变体失败只告警跳过.
func (c *CorrectiveRetrievalController) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = c.retriever.config.TopK
	}

	first, err := c.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if !c.isWeak(first, topK) {
		return first, nil
	}
	// 空查询没有可纠偏的语义，拓宽只会引入噪声.
	if c.expander.Normalize(query) == "" {
		return first, nil
	}

	c.metrics.CorrectivePass()
	c.logger.Info("首遍结果偏弱，触发纠偏检索",
		zap.Int("hits", len(first.Chunks)),
		zap.Int("top_k", topK))

	variants := c.expander.MultiQueries(query+c.config.BroadenSuffix, c.config.MaxVariants)

	merged := make(map[string]RetrievedChunk)
	var order []string
	absorb := func(chunks []RetrievedChunk) {
		for _, chunk := range chunks {
			key := c.mergeKey(chunk.Text)
			if prev, ok := merged[key]; ok {
				if chunk.Score > prev.Score {
					merged[key] = chunk
				}
				continue
			}
			merged[key] = chunk
			order = append(order, key)
		}
	}
	absorb(first.Chunks)

	outcome := first.Outcome
	for _, variant := range variants {
		res, verr := c.retriever.Retrieve(ctx, variant, topK)
		if verr != nil {
			// 首遍已成功，变体失败只降级不失败.
			c.logger.Warn("纠偏变体检索失败", zap.String("variant", variant), zap.Error(verr))
			outcome = OutcomeDegraded
			continue
		}
		if res.Outcome == OutcomeDegraded {
			outcome = OutcomeDegraded
		}
		absorb(res.Chunks)
	}

	chunks := make([]RetrievedChunk, 0, len(merged))
	for _, key := range order {
		chunks = append(chunks, merged[key])
	}
	sort.SliceStable(chunks, func(a, b int) bool { return chunks[a].Score > chunks[b].Score })
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	for i := range chunks {
		chunks[i].Rank = i + 1
	}

	if len(chunks) == 0 {
		outcome = OutcomeEmpty
	} else if outcome == OutcomeEmpty {
		outcome = OutcomeFull
	}
	return &RetrievalResult{Chunks: chunks, Outcome: outcome, Corrective: true}, nil
}

func (c *CorrectiveRetrievalController) isWeak(result *RetrievalResult, topK int) bool {
	threshold := c.config.MinStrongResults
	if byK := topK / c.config.WeakDivisor; byK > threshold {
		threshold = byK
	}
	return len(result.Chunks) < threshold
}

// mergeKey 块文本的有界前缀，近重复块折叠为同一键.
func (c *CorrectiveRetrievalController) mergeKey(text string) string {
	key := strings.TrimSpace(text)
	if len(key) > c.config.MergePrefixChars {
		key = key[:c.config.MergePrefixChars]
	}
	return key
}
