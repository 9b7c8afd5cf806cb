package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docchat/pkg/component/milvus"
)

// MilvusIndex 实现基于 Milvus 的相似度索引，
// 适合多副本部署或大规模文档集。
type MilvusIndex struct {
	client     *milvus.Client
	collection string
	dimension  int
}

var _ VectorIndex = (*MilvusIndex)(nil)

// NewMilvusIndex 创建 Milvus 索引并确保集合存在。
func NewMilvusIndex(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusIndex, error) {
	idx := &MilvusIndex{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "DocChat element summary vectors",
		Dimension:   dimension,
		MetaFields: []milvus.MetaField{
			{Name: "element_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "summary", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	if err := client.CreateCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("创建集合失败: %w", err)
	}

	return idx, nil
}

// Upsert 批量写入索引记录。
func (idx *MilvusIndex) Upsert(ctx context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(entries))
	metadata := map[string][]any{
		"element_id": make([]any, len(entries)),
		"summary":    make([]any, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("索引记录 ID 不能为空")
		}
		embeddings[i] = e.Vector
		metadata["element_id"][i] = e.ID
		metadata["summary"][i] = e.Summary
	}

	if _, err := idx.client.Insert(ctx, idx.collection, &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("写入 milvus 失败: %w", err)
	}
	return nil
}

// Search 向量相似度搜索，返回元素 ID 与分数。
func (idx *MilvusIndex) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	results, err := idx.client.Search(ctx, idx.collection, vector, topK, []string{"element_id"})
	if err != nil {
		return nil, fmt.Errorf("搜索 milvus 失败: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		id, ok := r.Metadata["element_id"].(string)
		if !ok || id == "" {
			continue
		}
		matches = append(matches, Match{ID: id, Score: r.Score})
	}
	return matches, nil
}

// Count 返回集合中的记录数。
func (idx *MilvusIndex) Count(ctx context.Context) (int64, error) {
	return idx.client.GetCollectionStats(ctx, idx.collection)
}

// Close 关闭 Milvus 连接。
func (idx *MilvusIndex) Close(ctx context.Context) error {
	return idx.client.Close(ctx)
}
