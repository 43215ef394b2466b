package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系模型提供精确的 tiktoken 计数.
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 将模型名称映射到其 tiktoken 编码.
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
}

// NewTiktokenTokenizer 为给定模型创建基于 tiktoken 的分词器.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding, ok := modelEncodings[model]
	if !ok {
		// 最长前缀匹配，gpt-4o 不会被 gpt-4 抢先命中.
		best := 0
		for prefix, e := range modelEncodings {
			if len(prefix) > best && strings.HasPrefix(model, prefix) {
				encoding = e
				best = len(prefix)
				ok = true
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}

	return &TiktokenTokenizer{
		model:    model,
		encoding: encoding,
	}, nil
}

// init 惰性初始化 tiktoken 编码（首次使用时可能下载编码数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Name() string {
	return "tiktoken/" + t.encoding
}
