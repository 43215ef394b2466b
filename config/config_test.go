package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "hybrid", cfg.Chunking.Strategy)
	assert.Equal(t, 110, cfg.Chunking.TargetTokens)
	assert.Equal(t, 180, cfg.Chunking.MaxTokens)
	assert.Equal(t, 35, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.SimilarityFloor, 1e-9)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.True(t, cfg.Corrective.Enabled)
	assert.Equal(t, 200, cfg.Corrective.MergePrefixChars)
	assert.Equal(t, " detailed clinical context", cfg.Corrective.BroadenSuffix)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunking:
  strategy: sliding
  target_tokens: 50
  max_tokens: 80
  overlap_tokens: 10
retrieval:
  top_k: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sliding", cfg.Chunking.Strategy)
	assert.Equal(t, 50, cfg.Chunking.TargetTokens)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	// 未覆盖的字段保持默认.
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.InDelta(t, 0.3, cfg.Retrieval.SimilarityFloor, 1e-9)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 4\n"), 0o644))

	t.Setenv("AYURVABOT_RETRIEVAL_TOP_K", "9")
	t.Setenv("AYURVABOT_EMBEDDING_API_KEY", "secret")
	t.Setenv("AYURVABOT_CORRECTIVE_ENABLED", "false")
	t.Setenv("AYURVABOT_CORRECTIVE_MERGE_PREFIX_CHARS", "150")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Retrieval.TopK)
	assert.Equal(t, "secret", cfg.Embedding.APIKey)
	assert.False(t, cfg.Corrective.Enabled)
	assert.Equal(t, 150, cfg.Corrective.MergePrefixChars)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval.TopK, cfg.Retrieval.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"非法分块策略", func(c *Config) { c.Chunking.Strategy = "magic" }},
		{"target_tokens 非正", func(c *Config) { c.Chunking.TargetTokens = 0 }},
		{"max 小于 target", func(c *Config) { c.Chunking.MaxTokens = 10 }},
		{"overlap 过大", func(c *Config) { c.Chunking.OverlapTokens = 110 }},
		{"非法嵌入提供者", func(c *Config) { c.Embedding.Provider = "magic" }},
		{"top_k 非正", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"floor 越界", func(c *Config) { c.Retrieval.SimilarityFloor = 1.5 }},
		{"重排缺 base_url", func(c *Config) { c.Rerank.Enabled = true }},
		{"merge_prefix_chars 非正", func(c *Config) { c.Corrective.MergePrefixChars = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
