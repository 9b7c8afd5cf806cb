package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
)

type serviceFixture struct {
	service       Service
	index         *fakeIndex
	content       *fakeContent
	provider      *fakeProvider
	manifest      *store.Manifest
	conversations *store.Conversations
	dir           string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dir := t.TempDir()

	manifest, err := store.NewManifest(filepath.Join(dir, "documents.json"))
	require.NoError(t, err)
	conversations, err := store.NewConversations(filepath.Join(dir, "conversations.json"))
	require.NoError(t, err)

	index := &fakeIndex{}
	content := &fakeContent{}
	provider := &fakeProvider{}

	extractor := &fakeExtractor{raws: []RawElement{{Kind: RawText, Page: 1, Text: "正文"}}}
	ingestor := NewIngestor(extractor, NewChunker(2500, 500), NewIndexer(index, content), manifest, conversations)
	retriever := NewRetriever(index, content, 20, 4)
	service := NewService(provider, ingestor, retriever, NewGenerator(), manifest, conversations)

	return &serviceFixture{
		service:       service,
		index:         index,
		content:       content,
		provider:      provider,
		manifest:      manifest,
		conversations: conversations,
		dir:           dir,
	}
}

// seedConversation 写入一个会话及其关联文档。
func (f *serviceFixture) seedConversation(t *testing.T, convID, docID string) {
	t.Helper()
	path := filepath.Join(f.dir, docID+".pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o644))

	require.NoError(t, f.manifest.Upsert(model.Document{
		ID: docID, Name: docID + ".pdf", Path: path, UploadedAt: time.Now(),
	}))
	require.NoError(t, f.conversations.Put(model.Conversation{
		ID: convID, DocumentID: docID, Title: docID + ".pdf",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
}

// seedElement 向双存储写入一个可检索元素。
func (f *serviceFixture) seedElement(t *testing.T, e model.Element) {
	t.Helper()
	require.NoError(t, NewIndexer(f.index, f.content).Index(context.Background(), &f.provider.fakeEmbed, []model.Element{e}))
	f.index.matches = append(f.index.matches, store.Match{ID: e.ID, Score: 0.9})
}

func TestQueryEventProtocol(t *testing.T) {
	f := newServiceFixture(t)
	f.seedConversation(t, "conv-1", "doc-1")
	f.seedElement(t, model.Element{ID: "e1", Kind: model.KindText, Page: 4, Text: "相关内容", Summary: "摘要"})

	var events []QueryEvent
	err := f.service.Query(context.Background(), "conv-1", "问题", "", func(event QueryEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	// 恰好一个 context、一个以上 chunk、一个 end。
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, QueryEventContext, events[0].Type)
	require.NotNil(t, events[0].Context)
	assert.Equal(t, 4, events[0].Context.Texts[0].Page)
	for _, e := range events[1 : len(events)-1] {
		assert.Equal(t, QueryEventChunk, e.Type)
	}
	assert.Equal(t, QueryEventEnd, events[len(events)-1].Type)

	// 流结束后持久化一问一答，助手轮携带上下文快照。
	conv, ok := f.conversations.Get("conv-1")
	require.True(t, ok)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, model.SenderUser, conv.Turns[0].Sender)
	assert.Equal(t, "问题", conv.Turns[0].Text)
	assert.Equal(t, model.SenderAssistant, conv.Turns[1].Sender)
	assert.NotEmpty(t, conv.Turns[1].Text)
	require.NotNil(t, conv.Turns[1].Context)
	assert.Equal(t, "相关内容", conv.Turns[1].Context.Texts[0].Content)
}

func TestQueryNoContext(t *testing.T) {
	f := newServiceFixture(t)
	f.seedConversation(t, "conv-1", "doc-1")

	var events []QueryEvent
	err := f.service.Query(context.Background(), "conv-1", "问题", "", func(event QueryEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, QueryEventContext, events[0].Type)
	assert.Equal(t, noContextAnswer, events[1].Content)
	assert.Equal(t, QueryEventEnd, events[2].Type)
}

func TestQueryUnknownConversation(t *testing.T) {
	f := newServiceFixture(t)
	err := f.service.Query(context.Background(), "no-such", "问题", "", func(QueryEvent) error {
		t.Fatal("不应发送任何事件")
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestQueryAbandonedStreamPersistsNothing(t *testing.T) {
	f := newServiceFixture(t)
	f.seedConversation(t, "conv-1", "doc-1")
	f.seedElement(t, model.Element{ID: "e1", Kind: model.KindText, Page: 1, Text: "内容", Summary: "摘要"})

	abort := errors.New("客户端断开")
	err := f.service.Query(context.Background(), "conv-1", "问题", "", func(event QueryEvent) error {
		if event.Type == QueryEventChunk {
			return abort
		}
		return nil
	})
	require.Error(t, err)

	conv, ok := f.conversations.Get("conv-1")
	require.True(t, ok)
	assert.Empty(t, conv.Turns)
}

func TestDeleteChatCascade(t *testing.T) {
	f := newServiceFixture(t)
	f.seedConversation(t, "conv-1", "doc-1")
	docPath := filepath.Join(f.dir, "doc-1.pdf")

	// 第二个会话引用同一文档。
	require.NoError(t, f.conversations.Put(model.Conversation{
		ID: "conv-2", DocumentID: "doc-1", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	// 仍有引用，文档保留。
	require.NoError(t, f.service.DeleteChat("conv-1"))
	_, ok := f.manifest.Get("doc-1")
	assert.True(t, ok)
	assert.FileExists(t, docPath)

	// 最后一个引用删除后级联删除文档与文件。
	require.NoError(t, f.service.DeleteChat("conv-2"))
	_, ok = f.manifest.Get("doc-1")
	assert.False(t, ok)
	assert.NoFileExists(t, docPath)
}

func TestDeleteChatNotFound(t *testing.T) {
	f := newServiceFixture(t)
	err := f.service.DeleteChat("no-such")
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestValidateKeyProbesEmbedding(t *testing.T) {
	f := newServiceFixture(t)

	require.NoError(t, f.service.ValidateKey(context.Background(), "some-key"))
	require.NotEmpty(t, f.provider.fakeEmbed.calls)
	assert.Equal(t, "test", f.provider.fakeEmbed.calls[len(f.provider.fakeEmbed.calls)-1])

	f.provider.fakeEmbed.err = errors.New("凭证无效")
	assert.Error(t, f.service.ValidateKey(context.Background(), "bad-key"))
}

func TestUploadPipeline(t *testing.T) {
	f := newServiceFixture(t)

	var last IngestEvent
	err := f.service.Upload(context.Background(), filepath.Join(f.dir, "up.pdf"), "up.pdf", 3, "", func(event IngestEvent) error {
		last = event
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StepComplete, last.Step)

	// 摄取自动创建会话并登记文档。
	doc, ok := f.manifest.GetByName("up.pdf")
	require.True(t, ok)
	assert.Equal(t, 1, f.conversations.CountByDocument(doc.ID))
}
