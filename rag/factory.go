package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SuyashMishr/AyurvaBot/config"
	"github.com/SuyashMishr/AyurvaBot/internal/metrics"
	"github.com/SuyashMishr/AyurvaBot/llm/embedding"
	"github.com/SuyashMishr/AyurvaBot/llm/rerank"
	llmtokenizer "github.com/SuyashMishr/AyurvaBot/llm/tokenizer"
)

// ====== 组件工厂 ======

// NewTokenizerFromConfig 按配置创建分块 tokenizer.
func NewTokenizerFromConfig(cfg config.TokenizerConfig, logger *zap.Logger) (Tokenizer, error) {
	var inner llmtokenizer.Tokenizer
	switch cfg.Kind {
	case "", "whitespace":
		inner = llmtokenizer.NewWhitespaceTokenizer()
	case "estimator":
		inner = llmtokenizer.NewEstimatorTokenizer(cfg.Model)
	case "tiktoken":
		t, err := llmtokenizer.NewTiktokenTokenizer(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("创建 tiktoken tokenizer: %w", err)
		}
		inner = t
	default:
		return nil, fmt.Errorf("未知 tokenizer 类型 %q", cfg.Kind)
	}
	return NewTokenizerAdapter(inner, logger), nil
}

// NewEmbeddingProviderFromConfig 按配置创建嵌入提供者.
func NewEmbeddingProviderFromConfig(cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "", "hash":
		return embedding.NewHashProvider(cfg.Dimensions), nil
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxBatch:   cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("未知嵌入提供者 %q", cfg.Provider)
	}
}

// NewRerankerFromConfig 按配置创建重排器；未启用时返回 nil（关闭重排）.
func NewRerankerFromConfig(cfg config.RerankConfig, logger *zap.Logger) (Reranker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider := rerank.NewHTTPProvider(rerank.HTTPConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	return NewCrossEncoderReranker(DefaultCrossEncoderConfig(), NewRerankProviderScorer(provider), logger)
}

// ====== 管线 ======

// Pipeline 装配完成的检索管线.
type Pipeline struct {
	Chunker    *ChunkingEngine
	Tagger     *EntityTagger
	Expander   *QueryExpander
	Provider   embedding.Provider
	Store      *VectorIndexStore
	Retriever  *HybridRetriever
	Controller *CorrectiveRetrievalController

	corpus     *Corpus
	corrective bool
}

// NewPipeline 从全局配置装配检索管线.
// corpus 为已构建好的语料；装配不触发嵌入调用，索引由 EnsureIndex 延迟就绪.
func NewPipeline(cfg *config.Config, corpus *Corpus, collector *metrics.Collector, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("管线装配需要配置")
	}
	if corpus == nil {
		return nil, fmt.Errorf("管线装配需要语料")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tok, err := NewTokenizerFromConfig(cfg.Tokenizer, logger)
	if err != nil {
		return nil, err
	}
	chunker := NewChunkingEngine(ChunkingConfig{
		Strategy:      ChunkingStrategy(cfg.Chunking.Strategy),
		TargetTokens:  cfg.Chunking.TargetTokens,
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}, tok, logger)

	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), nil, logger)
	expander := NewQueryExpander(DefaultQueryExpanderConfig(), nil, logger)

	provider, err := NewEmbeddingProviderFromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	storeCfg := DefaultIndexStoreConfig()
	storeCfg.Dir = cfg.Index.Dir
	storeCfg.EmbedBatchSize = cfg.Embedding.BatchSize
	store, err := NewVectorIndexStore(storeCfg, provider, collector, logger)
	if err != nil {
		return nil, err
	}

	reranker, err := NewRerankerFromConfig(cfg.Rerank, logger)
	if err != nil {
		return nil, err
	}

	retriever, err := NewHybridRetriever(HybridRetrievalConfig{
		TopK:            cfg.Retrieval.TopK,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
		SimilarityFloor: cfg.Retrieval.SimilarityFloor,
		VectorWeight:    cfg.Retrieval.VectorWeight,
		LexicalWeight:   cfg.Retrieval.LexicalWeight,
		EntityWeight:    cfg.Retrieval.EntityWeight,
		UseReranking:    cfg.Rerank.Enabled,
	}, store, corpus, provider, expander, reranker, collector, logger)
	if err != nil {
		return nil, err
	}

	controller, err := NewCorrectiveRetrievalController(CorrectiveConfig{
		MinStrongResults: cfg.Corrective.MinStrongResults,
		WeakDivisor:      cfg.Corrective.WeakDivisor,
		MaxVariants:      cfg.Corrective.MaxVariants,
		MergePrefixChars: cfg.Corrective.MergePrefixChars,
		BroadenSuffix:    cfg.Corrective.BroadenSuffix,
	}, retriever, expander, collector, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Chunker:    chunker,
		Tagger:     tagger,
		Expander:   expander,
		Provider:   provider,
		Store:      store,
		Retriever:  retriever,
		Controller: controller,
		corpus:     corpus,
		corrective: cfg.Corrective.Enabled,
	}, nil
}

// Corpus 返回管线持有的语料.
func (p *Pipeline) Corpus() *Corpus { return p.corpus }

// EnsureIndex 让索引与语料一致（复用或重建）.
func (p *Pipeline) EnsureIndex(ctx context.Context) error {
	_, err := p.Store.Ensure(ctx, p.corpus)
	return err
}

// Retrieve 执行检索：纠偏开启时走控制器，否则直连混合检索器.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if p.corrective {
		return p.Controller.Retrieve(ctx, query, topK)
	}
	return p.Retriever.Retrieve(ctx, query, topK)
}
