package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// Indexer 将摘要后的元素写入双存储。
// 写入顺序固定为先内容存储后相似度索引，
// 保证索引中的每个 ID 都能在内容存储中取到原文。
type Indexer struct {
	index   store.VectorIndex
	content store.ContentStore
}

// NewIndexer 创建索引器。
func NewIndexer(index store.VectorIndex, content store.ContentStore) *Indexer {
	return &Indexer{
		index:   index,
		content: content,
	}
}

// Index 嵌入摘要并写入双存储。
// 元素必须已完成摘要，否则返回错误。
func (ix *Indexer) Index(ctx context.Context, embed llm.EmbeddingProvider, elements []model.Element) error {
	if len(elements) == 0 {
		return nil
	}

	summaries := make([]string, len(elements))
	for i, e := range elements {
		if e.Summary == "" {
			return fmt.Errorf("元素 %s 缺少摘要", e.ID)
		}
		summaries[i] = e.Summary
	}

	vectors, err := embed.Embed(ctx, summaries)
	if err != nil {
		return fmt.Errorf("生成摘要嵌入失败: %w", err)
	}
	if len(vectors) != len(elements) {
		return fmt.Errorf("嵌入数量不匹配: 期望 %d, 实际 %d", len(elements), len(vectors))
	}

	// 先写内容存储。
	for _, e := range elements {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("序列化元素 %s 失败: %w", e.ID, err)
		}
		if err := ix.content.Put(ctx, e.ID, data); err != nil {
			return fmt.Errorf("写入内容存储失败: %w", err)
		}
	}

	// 再写相似度索引。
	entries := make([]store.IndexEntry, len(elements))
	for i, e := range elements {
		entries[i] = store.IndexEntry{
			ID:      e.ID,
			Vector:  vectors[i],
			Summary: e.Summary,
		}
	}
	if err := ix.index.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("写入相似度索引失败: %w", err)
	}

	logger.Infow("元素已写入双存储", "count", len(elements))
	return nil
}
