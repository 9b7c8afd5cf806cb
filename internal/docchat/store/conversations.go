package store

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// ErrConversationNotFound 会话不存在。
var ErrConversationNotFound = fmt.Errorf("会话不存在")

// Conversations 会话存储，持久化为单个 JSON 对象文件
// （会话 ID 到会话的映射）。
type Conversations struct {
	mu    sync.Mutex
	path  string
	convs map[string]model.Conversation
}

// NewConversations 加载或初始化会话存储。
func NewConversations(path string) (*Conversations, error) {
	c := &Conversations{
		path:  path,
		convs: make(map[string]model.Conversation),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("读取会话存储失败: %w", err)
	}
	if err := json.Unmarshal(data, &c.convs); err != nil {
		return nil, fmt.Errorf("解析会话存储失败: %w", err)
	}
	return c, nil
}

// Put 写入会话，已存在时整体覆盖。
func (c *Conversations) Put(conv model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.convs[conv.ID] = conv
	return c.save()
}

// Get 按 ID 查找会话。
func (c *Conversations) Get(id string) (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[id]
	return conv, ok
}

// List 返回全部会话，按更新时间倒序。
func (c *Conversations) List() []model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Conversation, 0, len(c.convs))
	for _, conv := range c.convs {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AppendTurns 向会话追加消息并刷新更新时间。
func (c *Conversations) AppendTurns(id string, turns ...model.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	conv.Turns = append(conv.Turns, turns...)
	conv.UpdatedAt = time.Now()
	c.convs[id] = conv
	return c.save()
}

// Delete 按 ID 删除会话，会话不存在时为空操作。
func (c *Conversations) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.convs[id]; !ok {
		return nil
	}
	delete(c.convs, id)
	return c.save()
}

// CountByDocument 统计引用指定文档的会话数。
func (c *Conversations) CountByDocument(documentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, conv := range c.convs {
		if conv.DocumentID == documentID {
			n++
		}
	}
	return n
}

// save 原子写回会话文件，调用方需持有锁。
func (c *Conversations) save() error {
	data, err := json.Marshal(c.convs)
	if err != nil {
		return fmt.Errorf("序列化会话存储失败: %w", err)
	}
	return docutil.WriteFileAtomic(c.path, data)
}
