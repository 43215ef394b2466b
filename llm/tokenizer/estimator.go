package tokenizer

import (
	"unicode/utf8"
)

// EstimatorTokenizer is a character-count-based token estimator.
// It distinguishes CJK and ASCII characters for better accuracy
// compared to a naive len/4 approach, and needs no encoding download.
type EstimatorTokenizer struct {
	model string
}

// NewEstimatorTokenizer creates a generic estimator. The model name is
// used for identification only.
func NewEstimatorTokenizer(model string) *EstimatorTokenizer {
	return &EstimatorTokenizer{model: model}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	// CJK characters ~1.5 chars/token, ASCII ~4 chars/token.
	estimated := int(float64(cjkCount)/1.5 + float64(totalChars-cjkCount)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *EstimatorTokenizer) Encode(text string) ([]int, error) {
	// The estimator cannot truly encode; return pseudo token IDs.
	count, err := e.CountTokens(text)
	if err != nil {
		return nil, err
	}
	tokens := make([]int, count)
	for i := range tokens {
		tokens[i] = i
	}
	return tokens, nil
}

func (e *EstimatorTokenizer) Name() string {
	return "estimator"
}

// isCJK returns true if the rune is a CJK character.
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) // CJK Symbols and Punctuation
}
