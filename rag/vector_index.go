package rag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// ====== 向量索引 ======

// SearchResult 向量检索命中：块 ID 及内积相似度.
type SearchResult struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`
}

// VectorIndex 向量相似度索引的最小能力.
type VectorIndex interface {
	// Search 返回与查询向量最相似的 k 条结果，按分数降序.
	Search(query []float32, k int) ([]SearchResult, error)
	// Size 返回索引内向量数量.
	Size() int
	// Dim 返回向量维度.
	Dim() int
}

// FlatIPIndex 精确内积索引.
// 向量在入索引前做 L2 归一化，内积即余弦相似度.
// 构建完成后只读，并发检索无需加锁.
type FlatIPIndex struct {
	dim     int
	vectors [][]float32 // 行对应块 ID（0..n-1）
}

// NewFlatIPIndex 从向量矩阵构建索引.
// 所有行必须同维；空矩阵构建出可用的空索引.
func NewFlatIPIndex(vectors [][]float32) (*FlatIPIndex, error) {
	idx := &FlatIPIndex{}
	for i, v := range vectors {
		if idx.dim == 0 {
			idx.dim = len(v)
		}
		if len(v) == 0 || len(v) != idx.dim {
			return nil, fmt.Errorf("向量 %d 维度 %d 与索引维度 %d 不一致", i, len(v), idx.dim)
		}
	}
	idx.vectors = vectors
	return idx, nil
}

// Size 实现 VectorIndex.
func (idx *FlatIPIndex) Size() int { return len(idx.vectors) }

// Dim 实现 VectorIndex.
func (idx *FlatIPIndex) Dim() int { return idx.dim }

// Search 穷举内积检索.
// 分数并列时保持块 ID 升序，结果确定.
func (idx *FlatIPIndex) Search(query []float32, k int) ([]SearchResult, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("查询向量维度 %d 与索引维度 %d 不一致", len(query), idx.dim)
	}

	results := make([]SearchResult, len(idx.vectors))
	for i, v := range idx.vectors {
		var dot float32
		for j := range v {
			dot += v[j] * query[j]
		}
		results[i] = SearchResult{ID: i, Score: float64(dot)}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// ====== 归一化 ======

// NormalizeL2 原地 L2 归一化；零向量保持不变.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Float64sTo32 把提供者输出的 float64 向量压到 float32（存储与检索口径）.
func Float64sTo32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// ====== 二进制矩阵编解码 ======
//
// 布局：magic(4) | version(u32) | rows(u32) | dim(u32) | rows*dim float32，
// 全部小端. 行数/维度写在头部，截断写入在读取时必然暴露为 EOF 或头部不符.

var matrixMagic = [4]byte{'A', 'Y', 'V', 'B'}

const matrixVersion uint32 = 1

// ErrBadMatrix 表示矩阵文件损坏或格式不符.
var ErrBadMatrix = errors.New("向量矩阵文件损坏或格式不符")

// WriteMatrix 将向量矩阵写出为二进制格式.
func WriteMatrix(w io.Writer, vectors [][]float32) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	header := make([]byte, 16)
	copy(header, matrixMagic[:])
	binary.LittleEndian.PutUint32(header[4:], matrixVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(header[12:], uint32(dim))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("写矩阵头: %w", err)
	}

	row := make([]byte, 4*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("向量 %d 维度 %d 与首行 %d 不一致", i, len(v), dim)
		}
		for j, x := range v {
			binary.LittleEndian.PutUint32(row[4*j:], math.Float32bits(x))
		}
		if _, err := w.Write(row); err != nil {
			return fmt.Errorf("写矩阵行 %d: %w", i, err)
		}
	}
	return nil
}

// ReadMatrix 读取 WriteMatrix 写出的矩阵.
// 任何头部不符或数据不足都返回包装了 ErrBadMatrix 的错误.
func ReadMatrix(r io.Reader) ([][]float32, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: 读头部失败: %v", ErrBadMatrix, err)
	}
	if [4]byte(header[:4]) != matrixMagic {
		return nil, fmt.Errorf("%w: magic 不符", ErrBadMatrix)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != matrixVersion {
		return nil, fmt.Errorf("%w: 不支持的版本 %d", ErrBadMatrix, v)
	}
	rows := int(binary.LittleEndian.Uint32(header[8:]))
	dim := int(binary.LittleEndian.Uint32(header[12:]))
	if rows < 0 || dim < 0 || (rows > 0 && dim == 0) {
		return nil, fmt.Errorf("%w: 非法形状 %dx%d", ErrBadMatrix, rows, dim)
	}

	vectors := make([][]float32, rows)
	row := make([]byte, 4*dim)
	for i := 0; i < rows; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("%w: 行 %d 数据不足: %v", ErrBadMatrix, i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[4*j:]))
		}
		vectors[i] = v
	}
	return vectors, nil
}
