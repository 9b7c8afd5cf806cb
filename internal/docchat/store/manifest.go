package store

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// Manifest 文档清单，持久化为单个 JSON 数组文件。
// 以文档名为唯一键：同名再次上传覆盖原有条目。
type Manifest struct {
	mu   sync.Mutex
	path string
	docs []model.Document
}

// NewManifest 加载或初始化文档清单。
func NewManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("读取文档清单失败: %w", err)
	}
	if err := json.Unmarshal(data, &m.docs); err != nil {
		return nil, fmt.Errorf("解析文档清单失败: %w", err)
	}
	return m, nil
}

// Upsert 按文档名写入条目，同名条目被整体替换。
func (m *Manifest) Upsert(doc model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := false
	for i := range m.docs {
		if m.docs[i].Name == doc.Name {
			m.docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		m.docs = append(m.docs, doc)
	}
	return m.save()
}

// Get 按 ID 查找文档。
func (m *Manifest) Get(id string) (model.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.docs {
		if d.ID == id {
			return d, true
		}
	}
	return model.Document{}, false
}

// GetByName 按文档名查找文档。
func (m *Manifest) GetByName(name string) (model.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.docs {
		if d.Name == name {
			return d, true
		}
	}
	return model.Document{}, false
}

// List 返回全部文档，按上传时间倒序。
func (m *Manifest) List() []model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Document, len(m.docs))
	copy(out, m.docs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

// Delete 按 ID 删除条目，条目不存在时为空操作。
func (m *Manifest) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.docs {
		if m.docs[i].ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return m.save()
		}
	}
	return nil
}

// save 原子写回清单文件，调用方需持有锁。
func (m *Manifest) save() error {
	data, err := json.Marshal(m.docs)
	if err != nil {
		return fmt.Errorf("序列化文档清单失败: %w", err)
	}
	return docutil.WriteFileAtomic(m.path, data)
}
