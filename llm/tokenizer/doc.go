// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数、CJK 感知估算器与空白分词计数，
// 用于分块尺寸控制与嵌入输入长度管理。
package tokenizer
