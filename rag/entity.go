package rag

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ====== 领域词表 ======

// 阿育吠陀领域词表：草药、适应症、核心概念.
// 命中判定统一小写包含，词表只收录小写词条.
var (
	herbTerms = []string{
		"ashwagandha", "tulsi", "giloy", "brahmi", "turmeric", "triphala", "arjuna", "shatavari",
		"guggulu", "licorice", "mulethi", "hing", "ajwain", "fennel", "cumin", "ginger", "amla",
	}
	conditionTerms = []string{
		"fever", "jwara", "cough", "cold", "asthma", "digestion", "acidity", "insomnia", "stress",
		"immunity", "heart", "cardiac", "respiratory", "fatigue", "arthritis",
	}
	coreConcepts = []string{"vata", "pitta", "kapha", "agni", "ojas", "ama", "panchakarma"}

	gazetteer = buildGazetteer()
)

func buildGazetteer() map[string]struct{} {
	g := make(map[string]struct{}, len(herbTerms)+len(conditionTerms)+len(coreConcepts))
	for _, group := range [][]string{herbTerms, conditionTerms, coreConcepts} {
		for _, term := range group {
			g[term] = struct{}{}
		}
	}
	return g
}

// GazetteerTerms 返回排序后的全部领域词条.
func GazetteerTerms() []string {
	terms := make([]string, 0, len(gazetteer))
	for term := range gazetteer {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// ====== NER 能力接口 ======

// NERProvider 通用命名实体识别能力.
// 标注器持有该接口而非具体实现，无外部 NER 服务时注入 NoopNER.
type NERProvider interface {
	// Entities 返回文本中的通用命名实体（人名/组织/地名等）.
	Entities(text string) ([]string, error)
}

// NoopNER 空实现，永远返回空实体集.
type NoopNER struct{}

// Entities 实现 NERProvider.
func (NoopNER) Entities(string) ([]string, error) { return nil, nil }

// ====== 实体标注器 ======

// EntityTaggerConfig 实体标注器配置.
type EntityTaggerConfig struct {
	MaxScanChars int `json:"max_scan_chars"` // NER 与大写启发式的扫描上限
}

// DefaultEntityTaggerConfig 返回默认标注器配置.
func DefaultEntityTaggerConfig() EntityTaggerConfig {
	return EntityTaggerConfig{MaxScanChars: 4000}
}

// EntityTagger 组合领域词表匹配、大写名词短语启发式与可选 NER.
// 无状态，可并发使用.
type EntityTagger struct {
	config EntityTaggerConfig
	ner    NERProvider
	logger *zap.Logger

	capsPattern *regexp.Regexp
	npPattern   *regexp.Regexp
}

// NewEntityTagger 创建实体标注器.
// ner 为 nil 时退化为纯词表标注.
func NewEntityTagger(config EntityTaggerConfig, ner NERProvider, logger *zap.Logger) *EntityTagger {
	if config.MaxScanChars <= 0 {
		config.MaxScanChars = 4000
	}
	if ner == nil {
		ner = NoopNER{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityTagger{
		config:      config,
		ner:         ner,
		logger:      logger,
		capsPattern: regexp.MustCompile(`\b([A-Z][a-z]{3,})\b`),
		npPattern:   regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`),
	}
}

// Extract 标注文本实体.
// NER 失败只降级不报错：记录告警并返回纯词表结果.
func (t *EntityTagger) Extract(text string) ChunkEntities {
	found := make(map[string]struct{})

	lower := strings.ToLower(text)
	for term := range gazetteer {
		if strings.Contains(lower, term) {
			found[term] = struct{}{}
		}
	}

	// 大写启发式只扫描有界前缀，长文本成本可控.
	sample := text
	if len(sample) > t.config.MaxScanChars {
		sample = sample[:t.config.MaxScanChars]
	}
	for _, m := range t.capsPattern.FindAllString(sample, -1) {
		if _, ok := gazetteer[strings.ToLower(m)]; ok {
			found[strings.ToLower(m)] = struct{}{}
		}
	}
	for _, m := range t.npPattern.FindAllString(sample, -1) {
		for _, token := range strings.Fields(strings.ToLower(m)) {
			if _, ok := gazetteer[token]; ok {
				found[token] = struct{}{}
			}
		}
	}

	var general []string
	if len(text) <= t.config.MaxScanChars {
		ents, err := t.ner.Entities(text)
		if err != nil {
			t.logger.Warn("NER 标注失败，退回词表结果", zap.Error(err))
		} else {
			general = dedupSorted(ents)
		}
	}

	return ChunkEntities{
		Gazetteer: sortedKeys(found),
		General:   general,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			set[it] = struct{}{}
		}
	}
	return sortedKeys(set)
}
