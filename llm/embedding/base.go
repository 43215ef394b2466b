package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BaseProvider 为 HTTP 嵌入提供者提供共同的功能.
type BaseProvider struct {
	name       string
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxBatch   int
}

// BaseConfig 持有 HTTP 提供者的共同配置.
type BaseConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxBatch   int
	Timeout    time.Duration
}

// NewBaseProvider 创建基础提供者.
func NewBaseProvider(cfg BaseConfig) *BaseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBatch := cfg.MaxBatch
	if maxBatch == 0 {
		maxBatch = 100
	}
	return &BaseProvider{
		name:       cfg.Name,
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxBatch:   maxBatch,
	}
}

func (p *BaseProvider) Name() string      { return p.name }
func (p *BaseProvider) ModelID() string   { return p.model }
func (p *BaseProvider) Dimensions() int   { return p.dimensions }
func (p *BaseProvider) MaxBatchSize() int { return p.maxBatch }

// doJSON 发送 JSON 请求并解码 JSON 响应.
func (p *BaseProvider) doJSON(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, truncateBody(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 256
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}

// embedQuery 嵌入单个查询字符串.
func embedQuery(ctx context.Context, query string, embedFn func(context.Context, *EmbeddingRequest) (*EmbeddingResponse, error)) ([]float64, error) {
	resp, err := embedFn(ctx, &EmbeddingRequest{
		Input:     []string{query},
		InputType: InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// embedDocuments 嵌入多个文档.
func embedDocuments(ctx context.Context, documents []string, embedFn func(context.Context, *EmbeddingRequest) (*EmbeddingResponse, error)) ([][]float64, error) {
	resp, err := embedFn(ctx, &EmbeddingRequest{
		Input:     documents,
		InputType: InputTypeDocument,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(documents) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(documents))
	}

	result := make([][]float64, len(documents))
	for _, e := range resp.Embeddings {
		if e.Index < 0 || e.Index >= len(result) {
			return nil, fmt.Errorf("embedding index %d out of range", e.Index)
		}
		result[e.Index] = e.Embedding
	}
	return result, nil
}
