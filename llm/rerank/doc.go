// Package rerank 提供交叉编码器重排序提供者接口和 HTTP 实现.
//
// 交叉编码器对 (query, document) 对联合打分，比纯向量相似度更准确
// 但成本更高。提供者缺席时检索必须继续工作（由调用方降级处理）.
package rerank
