package store

import (
	"context"
)

// IndexEntry 表示写入相似度索引的一条记录。
type IndexEntry struct {
	// ID 元素 ID，与内容存储共享命名空间。
	ID string
	// Vector 摘要文本的嵌入向量。
	Vector []float32
	// Summary 摘要文本，随索引保存便于调试。
	Summary string
}

// Match 表示一条相似度检索结果。
type Match struct {
	// ID 元素 ID。
	ID string
	// Score 归一化到 [0, 1] 的相似度分数。
	Score float32
}

// VectorIndex 定义相似度索引接口。
type VectorIndex interface {
	// Upsert 批量写入索引记录，已存在的 ID 被覆盖。
	Upsert(ctx context.Context, entries []IndexEntry) error

	// Search 向量相似度搜索，返回至多 topK 条结果，按分数降序。
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Count 返回索引中的记录数（不含引导占位记录）。
	Count(ctx context.Context) (int64, error)

	// Close 关闭索引并释放资源。
	Close(ctx context.Context) error
}

// ContentStore 定义内容存储接口。
type ContentStore interface {
	// Put 保存一个元素的序列化原文。
	Put(ctx context.Context, id string, data []byte) error

	// MGet 批量读取。返回切片与 ids 等长，缺失的 ID 对应 nil。
	MGet(ctx context.Context, ids []string) ([][]byte, error)

	// Close 关闭存储并释放资源。
	Close(ctx context.Context) error
}
