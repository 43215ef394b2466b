// Package embedding 提供统一的嵌入提供者接口和实现.
//
// OpenAIProvider 通过 OpenAI 兼容的 /v1/embeddings 路由访问任意
// sentence-transformers 服务（如 TEI、Infinity 托管的 all-MiniLM-L6-v2）。
// HashProvider 是确定性的本地特征哈希嵌入器，供离线运行与测试使用；
// 相同输入永远产生相同向量，因此基于指纹的索引缓存依然有效.
package embedding
