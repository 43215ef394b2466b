package rerank

import "context"

// RerankResult 表示单个文档的重排序结果.
type RerankResult struct {
	Index          int     `json:"index"`           // 输入文档列表中的下标
	RelevanceScore float64 `json:"relevance_score"` // 联合相关性分数
}

// Provider 定义统一的重排序提供者接口.
type Provider interface {
	// Rerank 对候选文档按与查询的联合相关性打分.
	// 返回结果按分数降序排列，最多 topN 条；topN <= 0 时返回全部.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// Name 返回提供者名称.
	Name() string
}
