package rag

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ====== 领域同义词与消歧表 ======

// domainSynonyms 受控同义词表：只扩展领域内高置信词条，避免查询漂移.
var domainSynonyms = map[string][]string{
	"fever":     {"pyrexia", "temperature", "jwara"},
	"heart":     {"cardiac", "cardiovascular"},
	"digestion": {"stomach", "gastric", "agni"},
	"cough":     {"respiratory", "bronchial"},
	"immunity":  {"ojas", "resistance"},
	"detox":     {"panchakarma", "cleanse"},
}

// acronymExpansions 常见医学缩写 → 全称（插在缩写之前，两者都保留）.
var acronymExpansions = map[string]string{
	"BP":  "blood pressure",
	"GI":  "gastrointestinal",
	"CNS": "central nervous system",
}

// polysemyHints 单词多义查询的澄清提示.
var polysemyHints = map[string][]string{
	"cold":     {"common cold", "low temperature"},
	"stress":   {"mental stress", "physiological stress"},
	"pressure": {"blood pressure"},
}

// ====== 同义词能力接口 ======

// SynonymProvider 外部词库同义词能力（如 WordNet 风格服务）.
// 扩展器持有该接口而非具体实现，无外部词库时注入 NoopSynonyms.
type SynonymProvider interface {
	// Synonyms 返回词条的同义词，无同义词时返回空切片.
	Synonyms(term string) []string
}

// NoopSynonyms 空实现，扩展只依赖领域同义词表.
type NoopSynonyms struct{}

// Synonyms 实现 SynonymProvider.
func (NoopSynonyms) Synonyms(string) []string { return nil }

// ====== 查询扩展器 ======

// QueryExpanderConfig 查询扩展器配置.
type QueryExpanderConfig struct {
	MaxExpansions int `json:"max_expansions"` // 每个命中词条的扩展上限
	MinTokenLen   int `json:"min_token_len"`  // 参与扩展的最短 token 长度（不含）
	MaxVariants   int `json:"max_variants"`   // 多查询变体上限
}

// DefaultQueryExpanderConfig 返回默认扩展器配置.
func DefaultQueryExpanderConfig() QueryExpanderConfig {
	return QueryExpanderConfig{MaxExpansions: 4, MinTokenLen: 2, MaxVariants: 3}
}

// Expansion 一次查询扩展的结构化结果.
// 所有切片按首次产生顺序排列，输入相同则输出逐字节相同.
type Expansion struct {
	Normalized  string   `json:"normalized"`   // 规范化查询
	Tokens      []string `json:"tokens"`       // 参与扩展的小写 token
	DomainTerms []string `json:"domain_terms"` // 命中领域同义词表的 token
	Expansions  []string `json:"expansions"`   // 附加扩展词（不含原 token）
}

// QueryExpander 查询规范化、缩写消歧、受控同义扩展与多查询生成.
// 无状态，可并发使用.
type QueryExpander struct {
	config   QueryExpanderConfig
	synonyms SynonymProvider
	logger   *zap.Logger
}

var queryStripPattern = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)

// NewQueryExpander 创建查询扩展器.
func NewQueryExpander(config QueryExpanderConfig, synonyms SynonymProvider, logger *zap.Logger) *QueryExpander {
	if config.MaxExpansions <= 0 {
		config.MaxExpansions = 4
	}
	if config.MinTokenLen <= 0 {
		config.MinTokenLen = 2
	}
	if config.MaxVariants <= 0 {
		config.MaxVariants = 3
	}
	if synonyms == nil {
		synonyms = NoopSynonyms{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExpander{config: config, synonyms: synonyms, logger: logger}
}

// Normalize 剥离非字母数字字符（保留连字符），折叠空白.
func (e *QueryExpander) Normalize(query string) string {
	q := queryStripPattern.ReplaceAllString(strings.TrimSpace(query), " ")
	return strings.Join(strings.Fields(q), " ")
}

// Disambiguate 展开已知缩写（全称插在缩写前），单词多义查询追加澄清提示.
func (e *QueryExpander) Disambiguate(query string) string {
	words := strings.Fields(query)
	expanded := make([]string, 0, len(words)+2)
	for _, w := range words {
		if full, ok := acronymExpansions[strings.ToUpper(w)]; ok {
			expanded = append(expanded, full)
		}
		expanded = append(expanded, w)
	}
	out := strings.Join(expanded, " ")

	if len(words) == 1 {
		if hints, ok := polysemyHints[strings.ToLower(words[0])]; ok {
			n := len(hints)
			if n > 2 {
				n = 2
			}
			out += " (" + strings.Join(hints[:n], " | ") + ")"
		}
	}
	return out
}

// Expand 规范化后逐 token 做领域同义词与外部词库扩展.
// 扩展结果去重且排除原 token，顺序确定.
func (e *QueryExpander) Expand(query string) Expansion {
	base := e.Normalize(query)

	var tokens []string
	tokenSet := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(base)) {
		if len(t) > e.config.MinTokenLen {
			tokens = append(tokens, t)
			tokenSet[t] = struct{}{}
		}
	}

	var domainTerms, expansions []string
	seen := make(map[string]struct{})
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		if _, ok := tokenSet[term]; ok {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		expansions = append(expansions, term)
	}

	for _, tok := range tokens {
		if syns, ok := domainSynonyms[tok]; ok {
			domainTerms = append(domainTerms, tok)
			for i, s := range syns {
				if i >= e.config.MaxExpansions {
					break
				}
				add(s)
			}
		}
		count := 0
		for _, s := range e.synonyms.Synonyms(tok) {
			if count >= e.config.MaxExpansions {
				break
			}
			if len(s) > 20 || strings.EqualFold(s, tok) {
				continue
			}
			add(strings.ToLower(s))
			count++
		}
	}

	return Expansion{
		Normalized:  base,
		Tokens:      tokens,
		DomainTerms: domainTerms,
		Expansions:  expansions,
	}
}

// MultiQueries 生成多个聚焦查询变体（RAG Fusion 风格）：
// 规范化基线、内联扩展词变体、领域词 OR 结构化变体.
// 结果大小写不敏感去重，上限 maxVariants（<=0 时用配置默认）.
func (e *QueryExpander) MultiQueries(query string, maxVariants int) []string {
	if maxVariants <= 0 {
		maxVariants = e.config.MaxVariants
	}

	info := e.Expand(e.Disambiguate(query))
	variants := []string{info.Normalized}

	if len(info.Expansions) > 0 {
		n := len(info.Expansions)
		if n > 2 {
			n = 2
		}
		variants = append(variants, info.Normalized+" "+strings.Join(info.Expansions[:n], " "))
	}
	if len(info.DomainTerms) > 0 {
		parts := make([]string, 0, len(info.DomainTerms))
		for _, dt := range info.DomainTerms {
			syns := domainSynonyms[dt]
			n := len(syns)
			if n > 2 {
				n = 2
			}
			parts = append(parts, dt+" OR "+strings.Join(syns[:n], " OR "))
		}
		variants = append(variants, strings.Join(parts, "; "))
	}

	seen := make(map[string]struct{})
	final := make([]string, 0, maxVariants)
	for _, v := range variants {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		final = append(final, v)
		if len(final) >= maxVariants {
			break
		}
	}
	return final
}

// DomainSynonymsOf 返回词条的领域同义词（只读副本）.
func DomainSynonymsOf(term string) []string {
	syns, ok := domainSynonyms[strings.ToLower(term)]
	if !ok {
		return nil
	}
	out := make([]string, len(syns))
	copy(out, syns)
	return out
}
