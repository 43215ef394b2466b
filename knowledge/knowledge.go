// Package knowledge 内置阿育吠陀知识库与语料构建.
//
// 知识段落是系统的种子语料；语料构建把外部文档分块、并发标注实体，
// 产出只读的检索语料.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SuyashMishr/AyurvaBot/rag"
)

// SourceName 内置知识段落的统一来源标识.
const SourceName = "Ayurveda Knowledge Base"

// Passages 返回内置知识段落（每次调用返回新切片，调用方可安全持有）.
func Passages() []rag.Document {
	docs := make([]rag.Document, len(passages))
	for i, text := range passages {
		docs[i] = rag.Document{Text: text, Source: SourceName, Type: "knowledge"}
	}
	return docs
}

// TopicOf 按关键词规则归类文本主题，规则自上而下首个命中生效.
func TopicOf(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range topicRules {
		for _, word := range rule.words {
			if strings.Contains(lower, word) {
				return rule.topic
			}
		}
	}
	return "general"
}

type topicRule struct {
	topic string
	words []string
}

// 规则有序：靠前的主题优先.
var topicRules = []topicRule{
	{"fever", []string{"fever", "jwara", "temperature"}},
	{"heart", []string{"heart", "cardiac", "arjuna"}},
	{"respiratory", []string{"cold", "cough", "respiratory"}},
	{"digestive", []string{"digestion", "digestive", "stomach"}},
	{"doshas", []string{"dosha", "vata", "pitta", "kapha"}},
	{"panchakarma", []string{"panchakarma", "vamana", "virechana"}},
	{"herbs", []string{"amla", "ashwagandha", "brahmi", "herb"}},
}

// BuildCorpus 把文档集合构建为检索语料：
// 逐文档分块（保序）、并发实体标注、按来源顺序分配稳定块 ID.
// concurrency <= 0 时默认 4.
func BuildCorpus(ctx context.Context, docs []rag.Document, chunker *rag.ChunkingEngine, tagger *rag.EntityTagger, concurrency int, logger *zap.Logger) (*rag.Corpus, error) {
	if chunker == nil {
		return nil, fmt.Errorf("语料构建需要分块引擎")
	}
	if tagger == nil {
		return nil, fmt.Errorf("语料构建需要实体标注器")
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var chunks []rag.Chunk
	for _, doc := range docs {
		for _, piece := range chunker.Chunk(doc.Text) {
			chunks = append(chunks, rag.Chunk{
				ID:      len(chunks),
				Text:    piece.Text,
				Summary: piece.Summary,
				Source:  doc.Source,
				Type:    doc.Type,
				Topic:   TopicOf(piece.Text),
			})
		}
	}

	// 实体标注是每块独立的纯计算，按块并发.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks[i].Entities = tagger.Extract(chunks[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("实体标注: %w", err)
	}

	logger.Info("语料构建完成",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))
	return &rag.Corpus{Chunks: chunks}, nil
}

// 内置阿育吠陀知识段落，按主题分组.
var passages = []string{
	// 发热（Jwara）
	"Fever in Ayurveda is called Jwara and is considered the king of all diseases. It is caused by aggravated Pitta dosha and accumulated toxins (ama) in the body.",
	"Tulsi (Holy Basil) is the most effective natural antipyretic herb that reduces body temperature and boosts immunity during fever.",
	"Ginger promotes sweating which helps break fever naturally by eliminating toxins through perspiration.",
	"Coriander seeds are cooling herbs that pacify aggravated Pitta dosha and reduce fever effectively.",
	"Neem has powerful antibacterial properties and treats fever caused by bacterial infections.",
	"Giloy (Guduchi) is an excellent immunity booster that helps the body fight fever-causing pathogens.",
	"Sudarshan Churna is a classical Ayurvedic formulation used for treating all types of fever including chronic and intermittent fevers.",

	// 心脏健康
	"Heart health in Ayurveda is governed by Vyana Vata which controls circulation and Sadhaka Pitta which governs emotions and heart function.",
	"Arjuna (Terminalia arjuna) is the most important heart tonic in Ayurveda that strengthens heart muscles and improves cardiac function.",
	"Brahmi reduces mental stress and anxiety that negatively affect heart health through the nervous system.",
	"Ashwagandha enhances overall heart strength and reduces stress-related cardiac issues by balancing cortisol levels.",
	"Punarnava improves circulation and helps with fluid retention around the heart area.",
	"Guggulu is traditional medicine for managing cholesterol levels and supporting overall cardiovascular health.",

	// 呼吸系统
	"Cold and cough in Ayurveda are caused by aggravated Kapha dosha and weakened digestive fire (Agni).",
	"Tulsi is the best herb for respiratory health, natural immunity, and treating cold and cough symptoms.",
	"Ginger and honey combination provides warming effect that soothes throat and reduces congestion.",
	"Turmeric milk has anti-inflammatory properties that reduce throat irritation and respiratory inflammation.",
	"Black pepper helps clear respiratory passages and reduces mucus accumulation in lungs.",
	"Licorice (Mulethi) is a natural cough suppressant and throat soother that reduces respiratory irritation.",
	"Trikatu (three spices: ginger, black pepper, long pepper) is excellent for respiratory health and reducing Kapha.",

	// 消化系统
	"Digestive problems stem from weak digestive fire (Agni) and imbalanced doshas, particularly Pitta and Vata.",
	"Ginger is the universal digestive herb that kindles Agni and improves appetite and digestion.",
	"Fennel is a cooling herb that reduces gas, bloating, and stomach discomfort effectively.",
	"Cumin enhances digestion and helps with proper nutrient absorption in the intestines.",
	"Ajwain (Carom seeds) is excellent for stomach pain, indigestion, and gas-related problems.",
	"Triphala is a three-fruit combination that provides comprehensive digestive wellness and detoxification.",
	"Hing (Asafoetida) is a powerful anti-flatulent herb and digestive stimulant that reduces bloating.",

	// 三大 dosha
	"The three doshas - Vata, Pitta, and Kapha - are fundamental energies that govern all physiological and psychological functions.",
	"Vata dosha is composed of air and space elements and controls movement, circulation, breathing, and nervous system functions.",
	"Pitta dosha is composed of fire and water elements and governs digestion, metabolism, body temperature, and transformation processes.",
	"Kapha dosha is composed of earth and water elements and provides structure, stability, immunity, and lubrication to the body.",
	"Balanced doshas result in good health while imbalanced doshas lead to various diseases and health problems.",

	// Panchakarma
	"Panchakarma is a comprehensive detoxification and rejuvenation program consisting of five therapeutic procedures.",
	"Vamana is therapeutic vomiting used to eliminate excess Kapha dosha from the upper respiratory tract.",
	"Virechana is purgation therapy used to eliminate excess Pitta dosha from the small intestine.",
	"Basti involves medicated enemas to eliminate excess Vata dosha from the colon.",
	"Nasya is nasal administration of medicines to treat disorders of head and neck region.",
	"Raktamokshana is bloodletting therapy used to eliminate toxins from blood and treat skin disorders.",

	// 总论
	"Ayurveda literally means 'science of life' and is one of the world's oldest healing systems focusing on prevention.",
	"The fundamental principle of Ayurveda is that health depends on delicate balance between mind, body, and spirit.",
	"Ayurveda emphasizes prevention and holistic healing through natural remedies, lifestyle practices, and dietary guidelines.",
	"Individual constitution (Prakriti) determines the most suitable diet, lifestyle, and treatment for each person.",
	"Ayurvedic treatment focuses on removing the root cause of disease rather than just treating symptoms.",

	// 其他草药
	"Amla (Indian Gooseberry) is rich in Vitamin C and is excellent for immunity, hair health, and overall vitality.",
	"Ashwagandha is an adaptogenic herb that helps the body manage stress and improves energy levels.",
	"Brahmi is a brain tonic that enhances memory, concentration, and mental clarity.",
	"Shankhpushpi is another brain tonic used for improving cognitive function and reducing anxiety.",
	"Jatamansi is used for treating insomnia, anxiety, and nervous disorders in Ayurveda.",
}
