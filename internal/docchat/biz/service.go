package biz

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

// 查询流事件类型。每次查询恰好发送一个 context 事件、
// 零或多个 chunk 事件、一个 end 事件。
const (
	QueryEventContext = "context"
	QueryEventChunk   = "chunk"
	QueryEventEnd     = "end"
)

// noContextAnswer 检索不到任何内容时的固定回答。
const noContextAnswer = "I couldn't find relevant information in the document " +
	"to answer your question. Please try rephrasing it."

// QueryEvent 查询流事件。
type QueryEvent struct {
	Type    string                  `json:"type"`
	Context *model.RetrievedContext `json:"context,omitempty"`
	Content string                  `json:"content,omitempty"`
}

// QueryEmitFunc 查询流事件回调，返回错误时中止查询。
type QueryEmitFunc func(event QueryEvent) error

// Service 对外暴露的业务操作集合。
type Service interface {
	// Upload 摄取已落盘的上传文件，进度通过 emit 流式发送。
	Upload(ctx context.Context, path, name string, size int64, apiKey string, emit IngestEmitFunc) error

	// Query 在会话上下文中回答问题，回答通过 emit 流式发送。
	// 问答轮在流结束后才持久化，中途失败不留半写状态。
	Query(ctx context.Context, conversationID, question, apiKey string, emit QueryEmitFunc) error

	// Documents 列出全部文档。
	Documents() []model.Document

	// Document 按 ID 查找文档。
	Document(id string) (model.Document, bool)

	// Chats 列出全部会话。
	Chats() []model.Conversation

	// Chat 按 ID 查找会话。
	Chat(id string) (model.Conversation, bool)

	// DeleteChat 删除会话。文档不再被任何会话引用时
	// 级联删除清单条目和底层文件。
	DeleteChat(id string) error

	// ValidateKey 校验请求级凭证是否可用。
	ValidateKey(ctx context.Context, apiKey string) error
}

// service Service 的默认实现。
type service struct {
	provider      llm.Provider
	ingestor      *Ingestor
	retriever     *Retriever
	generator     *Generator
	manifest      *store.Manifest
	conversations *store.Conversations
}

var _ Service = (*service)(nil)

// NewService 创建业务服务。
func NewService(
	provider llm.Provider,
	ingestor *Ingestor,
	retriever *Retriever,
	generator *Generator,
	manifest *store.Manifest,
	conversations *store.Conversations,
) Service {
	return &service{
		provider:      provider,
		ingestor:      ingestor,
		retriever:     retriever,
		generator:     generator,
		manifest:      manifest,
		conversations: conversations,
	}
}

func (s *service) Upload(ctx context.Context, path, name string, size int64, apiKey string, emit IngestEmitFunc) error {
	p := llm.WithCredential(s.provider, apiKey)
	_, _, err := s.ingestor.Ingest(ctx, path, name, size, p, p, emit)
	return err
}

func (s *service) Query(ctx context.Context, conversationID, question, apiKey string, emit QueryEmitFunc) error {
	conv, ok := s.conversations.Get(conversationID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrConversationNotFound, conversationID)
	}

	p := llm.WithCredential(s.provider, apiKey)

	result, err := s.retriever.Retrieve(ctx, p, question)
	if err != nil {
		return err
	}

	if err := emit(QueryEvent{Type: QueryEventContext, Context: &result.Context}); err != nil {
		return err
	}

	var answer string
	if !result.Found {
		answer = noContextAnswer
		if err := emit(QueryEvent{Type: QueryEventChunk, Content: answer}); err != nil {
			return err
		}
	} else {
		answer, err = s.generator.Stream(ctx, p, question, result.Context, conv.Turns, func(fragment string) error {
			return emit(QueryEvent{Type: QueryEventChunk, Content: fragment})
		})
		if err != nil {
			return err
		}
	}

	if err := emit(QueryEvent{Type: QueryEventEnd}); err != nil {
		return err
	}

	// 流正常结束后才持久化问答轮。
	now := time.Now()
	turns := []model.Turn{
		{Sender: model.SenderUser, Text: question, CreatedAt: now},
		{Sender: model.SenderAssistant, Text: answer, CreatedAt: now, Context: &result.Context},
	}
	if err := s.conversations.AppendTurns(conversationID, turns...); err != nil {
		return fmt.Errorf("持久化问答轮失败: %w", err)
	}
	return nil
}

func (s *service) Documents() []model.Document {
	return s.manifest.List()
}

func (s *service) Document(id string) (model.Document, bool) {
	return s.manifest.Get(id)
}

func (s *service) Chats() []model.Conversation {
	return s.conversations.List()
}

func (s *service) Chat(id string) (model.Conversation, bool) {
	return s.conversations.Get(id)
}

func (s *service) DeleteChat(id string) error {
	conv, ok := s.conversations.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrConversationNotFound, id)
	}
	if err := s.conversations.Delete(id); err != nil {
		return err
	}

	// 文档仍被其他会话引用时保留。
	if s.conversations.CountByDocument(conv.DocumentID) > 0 {
		return nil
	}

	doc, ok := s.manifest.Get(conv.DocumentID)
	if !ok {
		return nil
	}
	if err := s.manifest.Delete(doc.ID); err != nil {
		return err
	}
	if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
		logger.Warnw("删除文档文件失败", "document", doc.ID, "path", doc.Path, "error", err)
	}
	logger.Infow("级联删除文档", "document", doc.ID, "name", doc.Name)
	return nil
}

func (s *service) ValidateKey(ctx context.Context, apiKey string) error {
	p := llm.WithCredential(s.provider, apiKey)
	if _, err := p.EmbedSingle(ctx, "test"); err != nil {
		return fmt.Errorf("凭证校验失败: %w", err)
	}
	return nil
}
