package rag

import (
	"strings"

	"go.uber.org/zap"

	llmtokenizer "github.com/SuyashMishr/AyurvaBot/llm/tokenizer"
)

// TokenizerAdapter 把 llm/tokenizer 的完整接口适配为分块所需的最小计数能力.
// 底层计数失败时退回空白切分估算并记录告警，分块流程不中断.
type TokenizerAdapter struct {
	inner  llmtokenizer.Tokenizer
	logger *zap.Logger
}

// NewTokenizerAdapter 创建分块 tokenizer 适配器.
func NewTokenizerAdapter(inner llmtokenizer.Tokenizer, logger *zap.Logger) *TokenizerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenizerAdapter{inner: inner, logger: logger}
}

// CountTokens 实现分块 Tokenizer.
func (a *TokenizerAdapter) CountTokens(text string) int {
	if a.inner == nil {
		return len(strings.Fields(text))
	}
	n, err := a.inner.CountTokens(text)
	if err != nil {
		a.logger.Warn("token 计数失败，退回空白切分估算",
			zap.String("tokenizer", a.inner.Name()),
			zap.Error(err))
		return len(strings.Fields(text))
	}
	return n
}
