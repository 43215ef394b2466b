/*
# 概述

Package rag 提供 AyurvaBot 检索核心的完整实现.

该包覆盖检索管线的全部阶段：文档分块、领域实体标注、查询扩展、
向量索引的构建/持久化/指纹校验、混合检索与纠偏二次检索，
并提供工厂函数从全局配置一键创建完整的检索管线.

# 核心接口/类型

  - ChunkingEngine — 文档分块引擎（sliding / structural / semantic / hybrid 四种策略）
  - EntityTagger — 领域词表 + 可选 NER 的实体标注器
  - QueryExpander — 查询规范化、消歧、同义扩展与多查询生成
  - VectorIndexStore — 持久化向量索引的所有者（指纹校验、批量构建、原子换入）
  - FlatIPIndex — 内积精确相似度索引（归一化向量上等价余弦）
  - HybridRetriever — 向量 + 词面 + 实体加权融合，可选交叉编码器重排
  - CorrectiveRetrievalController — 弱结果检测与有界的纠偏第二遍检索
  - Reranker / CrossEncoderProvider — 重排序能力接口（真实现 + Noop 实现）

# 主要能力

  - 语料指纹：内容 + 嵌入模型标识的哈希，决定持久化索引复用还是重建
  - 缓存未命中永远不是错误：任何工件缺失/不一致都静默触发重建
  - 失败降级：重排或词面打分出错时退回上一阶段分数，检索永不因普通查询报错
  - 确定性：分数并列时保持向量检索原始顺序（稳定排序）
*/
package rag
