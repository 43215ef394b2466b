package tokenizer

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Encode 将文本转换为 token ID 列表.
	Encode(text string) ([]int, error)

	// Name 返回分词器的名称.
	Name() string
}
