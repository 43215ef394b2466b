package embedding

import (
	"context"
	"fmt"
)

// OpenAIConfig OpenAI 兼容提供者配置.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // 默认 https://api.openai.com；可指向 TEI/Infinity 等自托管服务
	Model      string // 默认 text-embedding-3-small
	Dimensions int
	MaxBatch   int
}

// OpenAIProvider 通过 OpenAI 兼容 API 生成嵌入.
type OpenAIProvider struct {
	*BaseProvider
}

// NewOpenAIProvider 创建 OpenAI 兼容提供者.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "openai",
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: dimensions,
			MaxBatch:   cfg.MaxBatch,
		}),
	}
}

// openAIEmbeddingRequest OpenAI API 请求体.
type openAIEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// openAIEmbeddingResponse OpenAI API 响应体.
type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为给定输入生成嵌入.
func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if len(req.Input) > p.MaxBatchSize() {
		return nil, fmt.Errorf("batch size %d exceeds limit %d", len(req.Input), p.MaxBatchSize())
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	var apiResp openAIEmbeddingResponse
	err := p.doJSON(ctx, "POST", "/v1/embeddings", &openAIEmbeddingRequest{
		Input: req.Input,
		Model: model,
	}, &apiResp)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	embeddings := make([]EmbeddingData, len(apiResp.Data))
	for i, d := range apiResp.Data {
		embeddings[i] = EmbeddingData{Index: d.Index, Embedding: d.Embedding}
	}

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      apiResp.Model,
		Embeddings: embeddings,
	}, nil
}

// EmbedQuery 嵌入单个查询.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return embedQuery(ctx, query, p.Embed)
}

// EmbedDocuments 嵌入多个文档.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return embedDocuments(ctx, documents, p.Embed)
}
