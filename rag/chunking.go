package rag

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// ====== 分块策略 ======

// ChunkingStrategy 分块策略.
type ChunkingStrategy string

const (
	StrategySliding    ChunkingStrategy = "sliding"    // 固定 token 滑动窗口，带重叠
	StrategyStructural ChunkingStrategy = "structural" // 按空行与标题的结构边界
	StrategySemantic   ChunkingStrategy = "semantic"   // 句子边界贪心打包
	StrategyHybrid     ChunkingStrategy = "hybrid"     // 结构优先，稀疏结构退回滑动窗口
)

// Tokenizer 分块所需的最小 token 计数能力.
type Tokenizer interface {
	// CountTokens 返回文本的 token 数量.
	CountTokens(text string) int
}

// ====== 配置 ======

// ChunkingConfig 分块引擎配置.
type ChunkingConfig struct {
	Strategy      ChunkingStrategy `json:"strategy"`
	TargetTokens  int              `json:"target_tokens"`   // 目标块大小
	MaxTokens     int              `json:"max_tokens"`      // 块大小硬上限
	OverlapTokens int              `json:"overlap_tokens"`  // 相邻滑动窗口的重叠
	SummaryChars  int              `json:"summary_chars"`   // 摘要最大字符数
	DedupChars    int              `json:"dedup_chars"`     // 混合策略合并去重的前缀长度
	SparseRatio   float64          `json:"sparse_ratio"`    // 结构稀疏判定阈值（文本 token / MaxTokens）
	MinChunkChars int              `json:"min_chunk_chars"` // 丢弃过短碎片
}

// DefaultChunkingConfig 返回默认分块配置.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Strategy:      StrategyHybrid,
		TargetTokens:  110,
		MaxTokens:     180,
		OverlapTokens: 35,
		SummaryChars:  180,
		DedupChars:    120,
		SparseRatio:   1.8,
		MinChunkChars: 1,
	}
}

// ====== 分块引擎 ======

// ChunkPiece 分块输出：文本及其抽取式摘要.
type ChunkPiece struct {
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

// ChunkingEngine 文档分块引擎.
// 所有策略在块级别保序：输出顺序与源文本中的出现顺序一致.
type ChunkingEngine struct {
	config    ChunkingConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

var (
	paragraphSplitPattern = regexp.MustCompile(`\n{2,}`)
	headingLinePattern    = regexp.MustCompile(`^(#{1,6}\s+|\d+\.\s+|[A-Z][A-Z\s]{6,}$)`)
	whitespacePattern     = regexp.MustCompile(`\s+`)
)

// NewChunkingEngine 创建分块引擎.
// tokenizer 为 nil 时使用空白切分计数；logger 为 nil 时使用 Nop.
func NewChunkingEngine(config ChunkingConfig, tokenizer Tokenizer, logger *zap.Logger) *ChunkingEngine {
	if config.TargetTokens <= 0 {
		config.TargetTokens = 110
	}
	if config.MaxTokens < config.TargetTokens {
		config.MaxTokens = config.TargetTokens
	}
	if config.OverlapTokens < 0 {
		config.OverlapTokens = 0
	}
	if config.OverlapTokens >= config.TargetTokens {
		config.OverlapTokens = config.TargetTokens / 3
	}
	if config.SummaryChars <= 0 {
		config.SummaryChars = 180
	}
	if config.DedupChars <= 0 {
		config.DedupChars = 120
	}
	if config.SparseRatio <= 0 {
		config.SparseRatio = 1.8
	}
	if config.Strategy == "" {
		config.Strategy = StrategyHybrid
	}
	if tokenizer == nil {
		tokenizer = fieldsTokenizer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkingEngine{config: config, tokenizer: tokenizer, logger: logger}
}

// Config 返回引擎生效的配置副本.
func (e *ChunkingEngine) Config() ChunkingConfig { return e.config }

// Chunk 按配置策略分块.
func (e *ChunkingEngine) Chunk(text string) []ChunkPiece {
	return e.ChunkWithStrategy(text, e.config.Strategy)
}

// ChunkWithStrategy 按指定策略分块.
// 空文本或纯空白返回空切片；未知策略退回 hybrid 并告警.
func (e *ChunkingEngine) ChunkWithStrategy(text string, strategy ChunkingStrategy) []ChunkPiece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var texts []string
	switch strategy {
	case StrategySliding:
		texts = e.slidingWindow(text, e.config.TargetTokens, e.config.OverlapTokens)
	case StrategyStructural:
		texts = e.structuralChunks(text)
	case StrategySemantic:
		texts = e.packSegments(splitSentences(text))
	case StrategyHybrid:
		texts = e.hybridChunks(text)
	default:
		e.logger.Warn("未知分块策略，退回 hybrid", zap.String("strategy", string(strategy)))
		texts = e.hybridChunks(text)
	}

	pieces := make([]ChunkPiece, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if len(t) < e.config.MinChunkChars {
			continue
		}
		pieces = append(pieces, ChunkPiece{Text: t, Summary: e.Summarize(t)})
	}
	return pieces
}

// Summarize 抽取式摘要：首句优先，超长时在词边界截断.
func (e *ChunkingEngine) Summarize(text string) string {
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return ""
	}
	maxChars := e.config.SummaryChars

	if sentences := splitSentences(text); len(sentences) > 0 {
		first := strings.TrimSpace(sentences[0])
		if first != "" && len(first) <= maxChars {
			return first
		}
	}
	if len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}

// ====== 策略实现 ======

// slidingWindow 固定窗口滑动分块，相邻窗口重叠 overlap 个 token.
func (e *ChunkingEngine) slidingWindow(text string, window, overlap int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if window <= 0 {
		window = e.config.TargetTokens
	}
	if overlap >= window {
		overlap = window / 3
	}

	var out []string
	start := 0
	for start < len(tokens) {
		end := start + window
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
		start = end - overlap
	}
	return out
}

// structuralSegments 按空行切段，段内再按标题行切分.
func (e *ChunkingEngine) structuralSegments(text string) []string {
	var segments []string
	for _, block := range paragraphSplitPattern.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		var current []string
		flush := func() {
			if len(current) > 0 {
				segments = append(segments, strings.TrimSpace(strings.Join(current, "\n")))
				current = current[:0]
			}
		}
		for _, line := range lines {
			if headingLinePattern.MatchString(strings.TrimSpace(line)) {
				flush()
			}
			current = append(current, line)
		}
		flush()
	}
	return segments
}

// structuralChunks 结构策略：每个段落原样成块，段落之间不合并.
// 仅超过硬上限的段落退回滑动窗口切分.
func (e *ChunkingEngine) structuralChunks(text string) []string {
	var out []string
	for _, seg := range e.structuralSegments(text) {
		if e.tokenizer.CountTokens(seg) > e.config.MaxTokens {
			out = append(out, e.slidingWindow(seg, e.config.TargetTokens, e.config.OverlapTokens)...)
			continue
		}
		out = append(out, seg)
	}
	return out
}

// packSegments 把段落/句子贪心打包到 [TargetTokens, MaxTokens] 区间：
// 缓冲不超硬上限就继续吸收，达到目标大小即落块.
// 超过硬上限的单段退回滑动窗口切分，保证单块不超上限.
func (e *ChunkingEngine) packSegments(segments []string) []string {
	var out []string
	var buf []string
	bufTokens := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(buf, " ")))
			buf = buf[:0]
			bufTokens = 0
		}
	}

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		n := e.tokenizer.CountTokens(seg)

		if n > e.config.MaxTokens {
			flush()
			out = append(out, e.slidingWindow(seg, e.config.TargetTokens, e.config.OverlapTokens)...)
			continue
		}
		if bufTokens+n <= e.config.MaxTokens {
			buf = append(buf, seg)
			bufTokens += n
			if bufTokens >= e.config.TargetTokens {
				flush()
			}
			continue
		}
		flush()
		buf = append(buf, seg)
		bufTokens = n
	}
	flush()
	return out
}

// hybridChunks 结构优先；当结构块过少且文本明显偏长（结构稀疏）时，
// 补充滑动窗口结果并按文本前缀去重合并，合并后保持首次出现顺序.
func (e *ChunkingEngine) hybridChunks(text string) []string {
	structural := e.packSegments(e.structuralSegments(text))

	total := e.tokenizer.CountTokens(text)
	sparse := len(structural) <= 2 && float64(total) > e.config.SparseRatio*float64(e.config.MaxTokens)
	if !sparse {
		return structural
	}

	merged := make([]string, 0, len(structural))
	seen := make(map[string]struct{})
	add := func(t string) {
		key := t
		if len(key) > e.config.DedupChars {
			key = key[:e.config.DedupChars]
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range structural {
		add(t)
	}
	for _, t := range e.slidingWindow(text, e.config.MaxTokens, e.config.OverlapTokens) {
		add(t)
	}
	return merged
}

// ====== 句子切分 ======

// splitSentences 按终止标点 + 空白 + 大写/数字开头切句.
// 覆盖不了缩写等边角情况，但对知识库语料足够稳定.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// 吞掉连续终止符.
		j := i
		for j+1 < len(runes) && (runes[j+1] == '.' || runes[j+1] == '!' || runes[j+1] == '?') {
			j++
		}
		// 终止符后需要空白，且下一个非空白字符为大写字母或数字.
		k := j + 1
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		if k == j+1 && k < len(runes) {
			i = j
			continue
		}
		if k >= len(runes) || unicode.IsUpper(runes[k]) || unicode.IsDigit(runes[k]) {
			s := strings.TrimSpace(string(runes[start : j+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = k
		}
		i = j
	}
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// fieldsTokenizer 空白切分计数，分块的默认 token 口径.
type fieldsTokenizer struct{}

func (fieldsTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }
