package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SuyashMishr/AyurvaBot/internal/metrics"
	"github.com/SuyashMishr/AyurvaBot/llm/embedding"
)

// ====== 配置与元数据 ======

// IndexStoreConfig 向量索引存储配置.
type IndexStoreConfig struct {
	Dir            string `json:"dir"`             // 工件目录
	IndexFile      string `json:"index_file"`      // 归一化检索矩阵
	EmbeddingsFile string `json:"embeddings_file"` // 原始嵌入矩阵
	MetadataFile   string `json:"metadata_file"`   // 指纹与形状元数据

	FingerprintChunks int `json:"fingerprint_chunks"` // 参与指纹的块数上限
	FingerprintBytes  int `json:"fingerprint_bytes"`  // 每块参与指纹的字节上限
	EmbedBatchSize    int `json:"embed_batch_size"`   // 构建时的嵌入批大小
}

// DefaultIndexStoreConfig 返回默认索引存储配置.
func DefaultIndexStoreConfig() IndexStoreConfig {
	return IndexStoreConfig{
		Dir:               "data/index",
		IndexFile:         "ayurvabot.index",
		EmbeddingsFile:    "embeddings.bin",
		MetadataFile:      "index_meta.json",
		FingerprintChunks: 200,
		FingerprintBytes:  500,
		EmbedBatchSize:    32,
	}
}

// IndexMetadata 持久化索引的元数据.
type IndexMetadata struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Vectors     int       `json:"vectors"`
	Dimension   int       `json:"dimension"`
	BuildID     string    `json:"build_id"`
	BuiltAt     time.Time `json:"built_at"`
}

// ====== 索引存储 ======

// VectorIndexStore 持久化向量索引的唯一所有者.
// 负责语料指纹计算、工件校验加载、批量嵌入重建与当前索引的原子换入.
// 缓存未命中从不是错误：任何工件缺失/损坏/指纹不符都触发重建.
type VectorIndexStore struct {
	config   IndexStoreConfig
	provider embedding.Provider
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu      sync.RWMutex // 保护 current/meta
	current *FlatIPIndex
	meta    IndexMetadata

	buildMu sync.Mutex // 同一时刻只允许一次构建
}

// NewVectorIndexStore 创建索引存储.
func NewVectorIndexStore(config IndexStoreConfig, provider embedding.Provider, collector *metrics.Collector, logger *zap.Logger) (*VectorIndexStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("索引存储需要嵌入提供者")
	}
	def := DefaultIndexStoreConfig()
	if config.Dir == "" {
		config.Dir = def.Dir
	}
	if config.IndexFile == "" {
		config.IndexFile = def.IndexFile
	}
	if config.EmbeddingsFile == "" {
		config.EmbeddingsFile = def.EmbeddingsFile
	}
	if config.MetadataFile == "" {
		config.MetadataFile = def.MetadataFile
	}
	if config.FingerprintChunks <= 0 {
		config.FingerprintChunks = def.FingerprintChunks
	}
	if config.FingerprintBytes <= 0 {
		config.FingerprintBytes = def.FingerprintBytes
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = def.EmbedBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorIndexStore{
		config:   config,
		provider: provider,
		metrics:  collector,
		logger:   logger,
	}, nil
}

// Fingerprint 计算语料指纹：前 N 个块文本（每块取有界前缀）+ 嵌入模型标识的 sha256.
// 语料内容或模型任一变化都会改变指纹.
func (s *VectorIndexStore) Fingerprint(corpus *Corpus) string {
	h := sha256.New()
	for i, chunk := range corpus.Chunks {
		if i >= s.config.FingerprintChunks {
			break
		}
		text := chunk.Text
		if len(text) > s.config.FingerprintBytes {
			text = text[:s.config.FingerprintBytes]
		}
		h.Write([]byte(text))
		h.Write([]byte{0})
	}
	h.Write([]byte(s.provider.ModelID()))
	return hex.EncodeToString(h.Sum(nil))
}

// Current 返回当前生效的索引；尚未加载或构建时 ok 为 false.
func (s *VectorIndexStore) Current() (*FlatIPIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Metadata 返回当前索引的元数据副本.
func (s *VectorIndexStore) Metadata() IndexMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Ensure 让当前索引与语料一致：能复用持久化工件就复用，否则重建.
// 这是常规入口；Load/Build 细粒度步骤单独暴露给命令行工具.
func (s *VectorIndexStore) Ensure(ctx context.Context, corpus *Corpus) (*FlatIPIndex, error) {
	if idx, ok := s.Load(corpus); ok {
		return idx, nil
	}
	return s.Build(ctx, corpus)
}

// Load 尝试从磁盘工件恢复索引.
// 校验链：元数据可读 → 指纹与模型一致 → 两个矩阵形状与元数据一致.
// 任何一步不符都按缓存未命中处理（记录 debug 日志，不报错）.
func (s *VectorIndexStore) Load(corpus *Corpus) (*FlatIPIndex, bool) {
	meta, err := s.readMetadata()
	if err != nil {
		s.miss("读元数据失败", err)
		return nil, false
	}
	if meta.Fingerprint != s.Fingerprint(corpus) {
		s.miss("指纹不符", nil)
		return nil, false
	}
	if meta.Model != s.provider.ModelID() {
		s.miss("嵌入模型不符", nil)
		return nil, false
	}
	if meta.Vectors != corpus.Len() {
		s.miss("向量数与语料块数不符", nil)
		return nil, false
	}

	indexVecs, err := s.readMatrixFile(s.config.IndexFile)
	if err != nil {
		s.miss("读索引矩阵失败", err)
		return nil, false
	}
	rawVecs, err := s.readMatrixFile(s.config.EmbeddingsFile)
	if err != nil {
		s.miss("读嵌入矩阵失败", err)
		return nil, false
	}
	if len(indexVecs) != meta.Vectors || len(rawVecs) != meta.Vectors {
		s.miss("矩阵行数与元数据不符", nil)
		return nil, false
	}
	if meta.Vectors > 0 && len(indexVecs[0]) != meta.Dimension {
		s.miss("矩阵维度与元数据不符", nil)
		return nil, false
	}

	idx, err := NewFlatIPIndex(indexVecs)
	if err != nil {
		s.miss("索引构造失败", err)
		return nil, false
	}

	s.swap(idx, meta)
	s.metrics.IndexCacheHit()
	s.logger.Info("复用持久化索引",
		zap.Int("vectors", meta.Vectors),
		zap.Int("dimension", meta.Dimension),
		zap.String("build_id", meta.BuildID))
	return idx, true
}

// Build 全量重建索引并持久化三个工件.
// 同一时刻只允许一次构建；构建成功后原子换入当前索引.
func (s *VectorIndexStore) Build(ctx context.Context, corpus *Corpus) (*FlatIPIndex, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	texts := corpus.Texts()

	raw := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += s.config.EmbedBatchSize {
		end := offset + s.config.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.provider.EmbedDocuments(ctx, texts[offset:end])
		if err != nil {
			return nil, fmt.Errorf("嵌入批次 [%d:%d]: %w", offset, end, err)
		}
		if len(vecs) != end-offset {
			return nil, fmt.Errorf("嵌入批次 [%d:%d]: 期望 %d 条向量，得到 %d 条", offset, end, end-offset, len(vecs))
		}
		for _, v := range vecs {
			raw = append(raw, Float64sTo32(v))
		}
	}

	normalized := make([][]float32, len(raw))
	for i, v := range raw {
		nv := make([]float32, len(v))
		copy(nv, v)
		NormalizeL2(nv)
		normalized[i] = nv
	}

	idx, err := NewFlatIPIndex(normalized)
	if err != nil {
		return nil, fmt.Errorf("构建索引: %w", err)
	}

	meta := IndexMetadata{
		Fingerprint: s.Fingerprint(corpus),
		Model:       s.provider.ModelID(),
		Vectors:     idx.Size(),
		Dimension:   idx.Dim(),
		BuildID:     uuid.NewString(),
		BuiltAt:     time.Now().UTC(),
	}
	if err := s.persist(normalized, raw, meta); err != nil {
		return nil, err
	}

	s.swap(idx, meta)
	s.metrics.IndexCacheMiss()
	s.metrics.ObserveIndexBuild(time.Since(start))
	s.metrics.SetChunksIndexed(idx.Size())
	s.logger.Info("索引重建完成",
		zap.Int("vectors", idx.Size()),
		zap.Int("dimension", idx.Dim()),
		zap.String("build_id", meta.BuildID),
		zap.Duration("elapsed", time.Since(start)))
	return idx, nil
}

// ====== 内部 ======

func (s *VectorIndexStore) swap(idx *FlatIPIndex, meta IndexMetadata) {
	s.mu.Lock()
	s.current = idx
	s.meta = meta
	s.mu.Unlock()
}

func (s *VectorIndexStore) miss(reason string, err error) {
	s.metrics.IndexCacheMiss()
	s.logger.Debug("索引缓存未命中", zap.String("reason", reason), zap.Error(err))
}

func (s *VectorIndexStore) readMetadata() (IndexMetadata, error) {
	var meta IndexMetadata
	data, err := os.ReadFile(filepath.Join(s.config.Dir, s.config.MetadataFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func (s *VectorIndexStore) readMatrixFile(name string) ([][]float32, error) {
	f, err := os.Open(filepath.Join(s.config.Dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMatrix(f)
}

// persist 写出三个工件，元数据最后落盘：
// 元数据存在即宣称矩阵完整，截断的矩阵会在下次 Load 的形状校验中暴露.
func (s *VectorIndexStore) persist(normalized, raw [][]float32, meta IndexMetadata) error {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return fmt.Errorf("创建索引目录: %w", err)
	}
	if err := s.writeMatrixFile(s.config.IndexFile, normalized); err != nil {
		return err
	}
	if err := s.writeMatrixFile(s.config.EmbeddingsFile, raw); err != nil {
		return err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("编码元数据: %w", err)
	}
	path := filepath.Join(s.config.Dir, s.config.MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写元数据: %w", err)
	}
	return nil
}

func (s *VectorIndexStore) writeMatrixFile(name string, vectors [][]float32) error {
	path := filepath.Join(s.config.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s: %w", name, err)
	}
	if err := WriteMatrix(f, vectors); err != nil {
		f.Close()
		return fmt.Errorf("写 %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("关闭 %s: %w", name, err)
	}
	return nil
}
