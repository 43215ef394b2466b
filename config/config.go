// Package config 提供检索核心的分层配置：默认值 → YAML 文件 → 环境变量.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量覆盖的统一前缀.
const EnvPrefix = "AYURVABOT_"

// Config 全局配置.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Index      IndexConfig      `yaml:"index"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Corrective CorrectiveConfig `yaml:"corrective"`
}

// LogConfig 日志配置.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json / console
}

// IndexConfig 索引工件配置.
type IndexConfig struct {
	Dir string `yaml:"dir"` // 工件目录
}

// ChunkingConfig 分块配置.
type ChunkingConfig struct {
	Strategy      string `yaml:"strategy"` // sliding / structural / semantic / hybrid
	TargetTokens  int    `yaml:"target_tokens"`
	MaxTokens     int    `yaml:"max_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
}

// TokenizerConfig 分块 token 计数配置.
type TokenizerConfig struct {
	Kind  string `yaml:"kind"`  // whitespace / tiktoken / estimator
	Model string `yaml:"model"` // tiktoken 模型名
}

// EmbeddingConfig 嵌入提供者配置.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash / openai
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// RerankConfig 交叉编码器重排配置.
type RerankConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RetrievalConfig 混合检索配置.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
	SimilarityFloor float64 `yaml:"similarity_floor"`
	VectorWeight    float64 `yaml:"vector_weight"`
	LexicalWeight   float64 `yaml:"lexical_weight"`
	EntityWeight    float64 `yaml:"entity_weight"`
}

// CorrectiveConfig 纠偏检索配置.
type CorrectiveConfig struct {
	Enabled          bool   `yaml:"enabled"`
	MinStrongResults int    `yaml:"min_strong_results"`
	WeakDivisor      int    `yaml:"weak_divisor"`
	MaxVariants      int    `yaml:"max_variants"`
	MergePrefixChars int    `yaml:"merge_prefix_chars"`
	BroadenSuffix    string `yaml:"broaden_suffix"`
}

// Default 返回内置默认配置.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "console"},
		Index: IndexConfig{Dir: "data/index"},
		Chunking: ChunkingConfig{
			Strategy:      "hybrid",
			TargetTokens:  110,
			MaxTokens:     180,
			OverlapTokens: 35,
		},
		Tokenizer: TokenizerConfig{Kind: "whitespace"},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Model:      "sentence-transformers/all-MiniLM-L6-v2",
			Dimensions: 256,
			BatchSize:  32,
		},
		Rerank: RerankConfig{
			Enabled: false,
			Model:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		},
		Retrieval: RetrievalConfig{
			TopK:            7,
			OverfetchFactor: 3,
			SimilarityFloor: 0.3,
			VectorWeight:    0.6,
			LexicalWeight:   0.25,
			EntityWeight:    0.15,
		},
		Corrective: CorrectiveConfig{
			Enabled:          true,
			MinStrongResults: 3,
			WeakDivisor:      2,
			MaxVariants:      4,
			MergePrefixChars: 200,
			BroadenSuffix:    " detailed clinical context",
		},
	}
}

// Load 加载配置：默认值打底，path 非空时叠加 YAML，最后叠加环境变量.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读配置文件 %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 叠加环境变量覆盖（AYURVABOT_ 前缀）.
func (c *Config) applyEnv() {
	envString(&c.Log.Level, "LOG_LEVEL")
	envString(&c.Log.Format, "LOG_FORMAT")
	envString(&c.Index.Dir, "INDEX_DIR")
	envString(&c.Chunking.Strategy, "CHUNKING_STRATEGY")
	envInt(&c.Chunking.TargetTokens, "CHUNKING_TARGET_TOKENS")
	envInt(&c.Chunking.MaxTokens, "CHUNKING_MAX_TOKENS")
	envInt(&c.Chunking.OverlapTokens, "CHUNKING_OVERLAP_TOKENS")
	envString(&c.Tokenizer.Kind, "TOKENIZER_KIND")
	envString(&c.Tokenizer.Model, "TOKENIZER_MODEL")
	envString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	envString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	envString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	envString(&c.Embedding.Model, "EMBEDDING_MODEL")
	envInt(&c.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")
	envInt(&c.Embedding.BatchSize, "EMBEDDING_BATCH_SIZE")
	envBool(&c.Rerank.Enabled, "RERANK_ENABLED")
	envString(&c.Rerank.BaseURL, "RERANK_BASE_URL")
	envString(&c.Rerank.APIKey, "RERANK_API_KEY")
	envString(&c.Rerank.Model, "RERANK_MODEL")
	envInt(&c.Retrieval.TopK, "RETRIEVAL_TOP_K")
	envFloat(&c.Retrieval.SimilarityFloor, "RETRIEVAL_SIMILARITY_FLOOR")
	envBool(&c.Corrective.Enabled, "CORRECTIVE_ENABLED")
	envInt(&c.Corrective.MergePrefixChars, "CORRECTIVE_MERGE_PREFIX_CHARS")
	envString(&c.Corrective.BroadenSuffix, "CORRECTIVE_BROADEN_SUFFIX")
}

// Validate 校验配置合法性.
func (c *Config) Validate() error {
	switch c.Chunking.Strategy {
	case "sliding", "structural", "semantic", "hybrid":
	default:
		return fmt.Errorf("非法分块策略 %q", c.Chunking.Strategy)
	}
	if c.Chunking.TargetTokens <= 0 {
		return fmt.Errorf("chunking.target_tokens 必须为正数")
	}
	if c.Chunking.MaxTokens < c.Chunking.TargetTokens {
		return fmt.Errorf("chunking.max_tokens 不能小于 target_tokens")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		return fmt.Errorf("chunking.overlap_tokens 必须在 [0, target_tokens) 区间")
	}
	switch c.Embedding.Provider {
	case "hash", "openai":
	default:
		return fmt.Errorf("非法嵌入提供者 %q", c.Embedding.Provider)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k 必须为正数")
	}
	if c.Retrieval.SimilarityFloor < -1 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("retrieval.similarity_floor 必须在 [-1, 1] 区间")
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("启用重排时必须配置 rerank.base_url")
	}
	if c.Corrective.MergePrefixChars <= 0 {
		return fmt.Errorf("corrective.merge_prefix_chars 必须为正数")
	}
	return nil
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
