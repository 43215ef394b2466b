package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// HTTPConfig HTTP 重排序提供者配置.
type HTTPConfig struct {
	BaseURL string        // 如 TEI 的 http://localhost:8080
	APIKey  string        // 可选
	Model   string        // 如 cross-encoder/ms-marco-MiniLM-L-6-v2
	Timeout time.Duration // 默认 30s
}

// HTTPProvider 通过 TEI 风格的 /rerank 路由调用交叉编码器服务.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewHTTPProvider 创建 HTTP 重排序提供者.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

func (p *HTTPProvider) Name() string { return "http/" + p.model }

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankResponseItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank 对候选文档按联合相关性打分.
func (p *HTTPProvider) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(&rerankRequest{
		Query: query,
		Texts: documents,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned status %d", resp.StatusCode)
	}

	var items []rerankResponseItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, 0, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, fmt.Errorf("rerank index %d out of range", item.Index)
		}
		results = append(results, RerankResult{
			Index:          item.Index,
			RelevanceScore: item.Score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
