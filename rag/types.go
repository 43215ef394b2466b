package rag

// Document 原始外部输入文档，由外部摄取协作方提供.
type Document struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// ChunkEntities 块的实体标注结果.
type ChunkEntities struct {
	Gazetteer []string `json:"gazetteer"` // 命中的领域词表词条（排序去重）
	General   []string `json:"general"`   // 通用命名实体（排序去重，可为空）
}

// Chunk 原子检索单元.
// 每次语料构建时创建一次，之后不可变；下次构建整体丢弃重建，从不原地修补.
type Chunk struct {
	ID       int           `json:"id"`      // 同一语料构建内稳定
	Text     string        `json:"text"`    // 非空，长度受分块策略约束
	Summary  string        `json:"summary"` // 抽取式预览
	Entities ChunkEntities `json:"entities"`
	Source   string        `json:"source"`
	Type     string        `json:"type"`
	Topic    string        `json:"topic"`
}

// Corpus 有序的块集合.
// 构建完成后只读，并发读取无需加锁.
type Corpus struct {
	Chunks []Chunk `json:"chunks"`
}

// Len 返回块数量.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Chunks)
}

// Texts 返回全部块文本（索引构建输入）.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Chunks))
	for i, chunk := range c.Chunks {
		texts[i] = chunk.Text
	}
	return texts
}

// RetrievedChunk 针对一次查询标注了分数与名次的块；临时值，按请求重算.
type RetrievedChunk struct {
	Chunk

	VectorScore  float64 `json:"vector_score"`  // 向量相似度（归一化内积）
	LexicalScore float64 `json:"lexical_score"` // 查询词覆盖率
	EntityBoost  float64 `json:"entity_boost"`  // 领域实体交集加权
	RerankScore  float64 `json:"rerank_score"`  // 交叉编码器分数（未重排时为 0）
	Score        float64 `json:"score"`         // 最终融合分数
	Rank         int     `json:"rank"`          // 1 起始名次
}

// Outcome 标注一次检索的完成质量，使降级成为可见契约而非副作用.
type Outcome string

const (
	OutcomeFull     Outcome = "full"     // 全部信号按配置生效
	OutcomeDegraded Outcome = "degraded" // 某个可选信号失败，退回上一阶段分数
	OutcomeEmpty    Outcome = "empty"    // 空查询/空语料/无命中
)

// RetrievalResult 一次检索的完整结果.
type RetrievalResult struct {
	Chunks     []RetrievedChunk `json:"chunks"`
	Outcome    Outcome          `json:"outcome"`
	Corrective bool             `json:"corrective"` // 是否触发了纠偏第二遍
}
