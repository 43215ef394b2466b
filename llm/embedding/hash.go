package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashProvider 是确定性的本地特征哈希嵌入器.
// 它把文本的小写词袋通过 FNV 哈希散列到固定维度，
// 共享词汇的文本因此获得较高的余弦相似度.
// 不依赖外部服务，适合离线运行与测试；
// 相同输入永远产生相同向量，指纹缓存保持有效.
type HashProvider struct {
	dimensions int
	maxBatch   int
}

// NewHashProvider 创建特征哈希提供者.
// dimensions 为 0 时默认 256.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashProvider{
		dimensions: dimensions,
		maxBatch:   1024,
	}
}

func (p *HashProvider) Name() string      { return "hash" }
func (p *HashProvider) ModelID() string   { return fmt.Sprintf("feature-hash-%d", p.dimensions) }
func (p *HashProvider) Dimensions() int   { return p.dimensions }
func (p *HashProvider) MaxBatchSize() int { return p.maxBatch }

// Embed 为给定输入生成嵌入.
func (p *HashProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings := make([]EmbeddingData, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = EmbeddingData{
			Index:     i,
			Embedding: p.embedText(text),
		}
	}

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      p.ModelID(),
		Embeddings: embeddings,
	}, nil
}

// embedText 把单个文本散列为 L2 归一化向量.
func (p *HashProvider) embedText(text string) []float64 {
	vec := make([]float64, p.dimensions)

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?()[]\"'")
		if tok == "" {
			continue
		}

		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimensions))
		// 最高位决定符号，减少哈希碰撞带来的系统性偏置.
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// EmbedQuery 嵌入单个查询.
func (p *HashProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return embedQuery(ctx, query, p.Embed)
}

// EmbedDocuments 嵌入多个文档.
func (p *HashProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return embedDocuments(ctx, documents, p.Embed)
}
