package model

import (
	"time"
)

// 消息发送方。
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Conversation 表示绑定到某个文档的一段会话。
// 每次文档摄取都会自动创建一个会话，删除会话时若文档
// 不再被其他会话引用则级联删除文档。
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Turns      []Turn    `json:"turns"`
}

// Turn 表示会话中的一条消息。
// 助手消息会附带生成该回答时使用的检索上下文快照。
type Turn struct {
	Sender    string            `json:"sender"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	Context   *RetrievedContext `json:"context,omitempty"`
}
