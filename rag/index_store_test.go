package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuyashMishr/AyurvaBot/llm/embedding"
)

func testCorpus(texts ...string) *Corpus {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{ID: i, Text: text, Source: "test"}
	}
	return &Corpus{Chunks: chunks}
}

func newTestStore(t *testing.T, dir string) *VectorIndexStore {
	t.Helper()
	cfg := DefaultIndexStoreConfig()
	cfg.Dir = dir
	store, err := NewVectorIndexStore(cfg, embedding.NewHashProvider(64), nil, nil)
	require.NoError(t, err)
	return store
}

func TestVectorIndexStore_Fingerprint(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	corpus := testCorpus("tulsi reduces fever", "arjuna strengthens heart")
	fp1 := store.Fingerprint(corpus)
	fp2 := store.Fingerprint(corpus)
	assert.Equal(t, fp1, fp2, "相同语料指纹应稳定")

	changed := testCorpus("tulsi reduces fever", "arjuna strengthens heart muscle")
	assert.NotEqual(t, fp1, store.Fingerprint(changed), "内容变化应改变指纹")

	// 换嵌入模型也应改变指纹.
	cfg := DefaultIndexStoreConfig()
	cfg.Dir = dir
	other, err := NewVectorIndexStore(cfg, embedding.NewHashProvider(128), nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, other.Fingerprint(corpus))
}

func TestVectorIndexStore_BuildAndPersist(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	corpus := testCorpus("tulsi reduces fever", "arjuna strengthens heart", "triphala aids digestion")

	idx, err := store.Build(context.Background(), corpus)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Size())
	assert.Equal(t, 64, idx.Dim())

	// 三个工件都落盘.
	for _, name := range []string{"ayurvabot.index", "embeddings.bin", "index_meta.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	meta := store.Metadata()
	assert.Equal(t, store.Fingerprint(corpus), meta.Fingerprint)
	assert.Equal(t, 3, meta.Vectors)
	assert.Equal(t, 64, meta.Dimension)
	assert.NotEmpty(t, meta.BuildID)

	current, ok := store.Current()
	require.True(t, ok)
	assert.Same(t, idx, current)
}

func TestVectorIndexStore_LoadReusesArtifacts(t *testing.T) {
	dir := t.TempDir()
	corpus := testCorpus("tulsi reduces fever", "arjuna strengthens heart")

	first := newTestStore(t, dir)
	_, err := first.Build(context.Background(), corpus)
	require.NoError(t, err)
	buildID := first.Metadata().BuildID

	// 新进程（新 store 实例）应复用工件而非重建.
	second := newTestStore(t, dir)
	idx, ok := second.Load(corpus)
	require.True(t, ok)
	assert.Equal(t, 2, idx.Size())
	assert.Equal(t, buildID, second.Metadata().BuildID)

	// 复用的索引与原索引检索结果一致.
	built, _ := first.Current()
	query := built.vectors[0]
	wantHits, err := built.Search(query, 2)
	require.NoError(t, err)
	gotHits, err := idx.Search(query, 2)
	require.NoError(t, err)
	require.Len(t, gotHits, len(wantHits))
	for i := range wantHits {
		assert.Equal(t, wantHits[i].ID, gotHits[i].ID)
		assert.InDelta(t, wantHits[i].Score, gotHits[i].Score, 1e-6)
	}
}

func TestVectorIndexStore_LoadMissIsNotError(t *testing.T) {
	store := newTestStore(t, t.TempDir())

	// 空目录：未命中，不是错误.
	_, ok := store.Load(testCorpus("anything"))
	assert.False(t, ok)
	_, hasCurrent := store.Current()
	assert.False(t, hasCurrent)
}

func TestVectorIndexStore_LoadMissOnFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	_, err := store.Build(context.Background(), testCorpus("tulsi reduces fever"))
	require.NoError(t, err)

	second := newTestStore(t, dir)
	_, ok := second.Load(testCorpus("tulsi reduces fever and more"))
	assert.False(t, ok, "语料变化后旧工件不可复用")
}

func TestVectorIndexStore_LoadMissOnCorruptMatrix(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	corpus := testCorpus("tulsi reduces fever", "arjuna strengthens heart")

	_, err := store.Build(context.Background(), corpus)
	require.NoError(t, err)

	// 截断嵌入矩阵模拟部分写入.
	path := filepath.Join(dir, "embeddings.bin")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-8], 0o644))

	second := newTestStore(t, dir)
	_, ok := second.Load(corpus)
	assert.False(t, ok, "损坏工件应按未命中处理")
}

func TestVectorIndexStore_Ensure(t *testing.T) {
	dir := t.TempDir()
	corpus := testCorpus("tulsi reduces fever")
	ctx := context.Background()

	store := newTestStore(t, dir)
	_, err := store.Ensure(ctx, corpus)
	require.NoError(t, err)
	buildID := store.Metadata().BuildID

	// 第二次 Ensure 复用工件，BuildID 不变.
	second := newTestStore(t, dir)
	_, err = second.Ensure(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, buildID, second.Metadata().BuildID)
}

func TestVectorIndexStore_BuildNormalizesVectors(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	corpus := testCorpus("tulsi fever remedy")

	idx, err := store.Build(context.Background(), corpus)
	require.NoError(t, err)

	// 归一化向量自身检索分数为 1.
	results, err := idx.Search(idx.vectors[0], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}
