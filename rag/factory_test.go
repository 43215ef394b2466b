package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuyashMishr/AyurvaBot/config"
)

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Dir = t.TempDir()
	cfg.Retrieval.SimilarityFloor = -1
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewPipeline_EndToEnd(t *testing.T) {
	cfg := pipelineConfig(t)
	corpus := testCorpus(
		"Tulsi is the most effective herb for reducing fever.",
		"Arjuna strengthens heart muscles and cardiac function.",
	)

	pipeline, err := NewPipeline(cfg, corpus, nil, nil)
	require.NoError(t, err)
	require.NoError(t, pipeline.EnsureIndex(context.Background()))

	result, err := pipeline.Retrieve(context.Background(), "fever tulsi", 2)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Contains(t, result.Chunks[0].Text, "fever")
}

func TestNewPipeline_RequiresInputs(t *testing.T) {
	_, err := NewPipeline(nil, testCorpus("x"), nil, nil)
	assert.Error(t, err)

	_, err = NewPipeline(config.Default(), nil, nil, nil)
	assert.Error(t, err)
}

func TestNewTokenizerFromConfig(t *testing.T) {
	for _, kind := range []string{"", "whitespace", "estimator", "tiktoken"} {
		tok, err := NewTokenizerFromConfig(config.TokenizerConfig{Kind: kind}, nil)
		require.NoError(t, err, kind)
		assert.Positive(t, tok.CountTokens("three simple words"), kind)
	}

	_, err := NewTokenizerFromConfig(config.TokenizerConfig{Kind: "bogus"}, nil)
	assert.Error(t, err)
}

func TestNewEmbeddingProviderFromConfig(t *testing.T) {
	hash, err := NewEmbeddingProviderFromConfig(config.EmbeddingConfig{Provider: "hash", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, hash.Dimensions())

	openai, err := NewEmbeddingProviderFromConfig(config.EmbeddingConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", openai.Name())

	_, err = NewEmbeddingProviderFromConfig(config.EmbeddingConfig{Provider: "bogus"})
	assert.Error(t, err)
}

func TestNewRerankerFromConfig(t *testing.T) {
	r, err := NewRerankerFromConfig(config.RerankConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, r, "未启用时应返回 nil")

	r, err = NewRerankerFromConfig(config.RerankConfig{Enabled: true, BaseURL: "http://localhost:8080"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
