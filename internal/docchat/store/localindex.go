package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// bootstrapID 新建索引时写入的占位记录 ID。
// 占位记录保证索引文件从创建起就是合法的非空 JSON，
// 检索和计数都会跳过它。
const bootstrapID = "__bootstrap__"

// LocalIndex 实现基于本地 JSON 文件的相似度索引。
// 检索为全量余弦相似度扫描，适合单机、中小规模文档集。
type LocalIndex struct {
	mu      sync.RWMutex
	path    string
	entries map[string]localEntry
}

type localEntry struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Summary string    `json:"summary,omitempty"`
}

// localIndexFile 索引文件的持久化格式。
type localIndexFile struct {
	Entries []localEntry `json:"entries"`
}

var _ VectorIndex = (*LocalIndex)(nil)

// NewLocalIndex 打开或创建本地索引。
// 文件不存在时创建一个只含占位记录的新索引并立即落盘。
func NewLocalIndex(path string) (*LocalIndex, error) {
	idx := &LocalIndex{
		path:    path,
		entries: make(map[string]localEntry),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file localIndexFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("解析索引文件失败: %w", err)
		}
		for _, e := range file.Entries {
			idx.entries[e.ID] = e
		}
	case os.IsNotExist(err):
		idx.entries[bootstrapID] = localEntry{ID: bootstrapID}
		if err := idx.save(); err != nil {
			return nil, fmt.Errorf("初始化索引文件失败: %w", err)
		}
		logger.Infow("本地索引已初始化", "path", path)
	default:
		return nil, fmt.Errorf("读取索引文件失败: %w", err)
	}

	return idx, nil
}

// Upsert 批量写入索引记录并落盘。
func (idx *LocalIndex) Upsert(_ context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("索引记录 ID 不能为空")
		}
		idx.entries[e.ID] = localEntry{
			ID:      e.ID,
			Vector:  e.Vector,
			Summary: e.Summary,
		}
	}

	return idx.save()
}

// Search 全量扫描计算余弦相似度，返回至多 topK 条结果。
func (idx *LocalIndex) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.entries))
	for id, e := range idx.entries {
		if id == bootstrapID || len(e.Vector) == 0 {
			continue
		}
		sim := textutil.CosineSimilarity(vector, e.Vector)
		matches = append(matches, Match{
			ID:    id,
			Score: float32(textutil.NormalizeCosineSimilarity(sim)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		// 分数相同按 ID 排序，保证结果确定。
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count 返回索引中的记录数，不含占位记录。
func (idx *LocalIndex) Count(_ context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := int64(len(idx.entries))
	if _, ok := idx.entries[bootstrapID]; ok {
		n--
	}
	return n, nil
}

// Close 落盘并关闭索引。
func (idx *LocalIndex) Close(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.save()
}

// save 原子写入索引文件。调用方必须持有写锁。
func (idx *LocalIndex) save() error {
	file := localIndexFile{Entries: make([]localEntry, 0, len(idx.entries))}
	for _, e := range idx.entries {
		file.Entries = append(file.Entries, e)
	}
	// 固定顺序，避免每次落盘产生无意义的文件差异。
	sort.Slice(file.Entries, func(i, j int) bool {
		return file.Entries[i].ID < file.Entries[j].ID
	})

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}
	return docutil.WriteFileAtomic(idx.path, data)
}
