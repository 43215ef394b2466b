package tokenizer

import "strings"

// WhitespaceTokenizer 按空白分割计数 token.
// 分块尺寸控制默认使用它：嵌入模型实际使用子词 token，
// 但空白近似对块大小启发式已经足够，且摄取最快.
type WhitespaceTokenizer struct{}

// NewWhitespaceTokenizer 创建空白分词器.
func NewWhitespaceTokenizer() *WhitespaceTokenizer {
	return &WhitespaceTokenizer{}
}

func (w *WhitespaceTokenizer) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (w *WhitespaceTokenizer) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i := range tokens {
		tokens[i] = i
	}
	return tokens, nil
}

func (w *WhitespaceTokenizer) Name() string {
	return "whitespace"
}
