package biz

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/infra/pool"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/utils/id"
)

// 摄取进度步骤，按流水线顺序发送。
const (
	StepExtracting  = "extracting"
	StepChunking    = "chunking"
	StepSummarizing = "summarizing"
	StepIndexing    = "indexing"
	StepSaving      = "saving"
	StepManifest    = "manifest"
	StepComplete    = "complete"
	StepError       = "error"
)

// previewSize 文档预览的最大长度。
const previewSize = 200

// IngestEvent 摄取进度事件。
// Document 和 Conversation 仅在 complete 事件携带。
type IngestEvent struct {
	Step         string              `json:"step"`
	Message      string              `json:"message"`
	Document     *model.Document     `json:"document,omitempty"`
	Conversation *model.Conversation `json:"conversation,omitempty"`
}

// IngestEmitFunc 进度事件回调，返回错误时中止摄取。
type IngestEmitFunc func(event IngestEvent) error

// Ingestor 文档摄取流水线。
// 依次执行提取、分块、摘要、索引、落盘，每个阶段
// 发送进度事件。任一阶段失败即中止，已写入的数据
// 不回滚（双存储写入顺序保证索引无孤儿条目）。
type Ingestor struct {
	extractor     Extractor
	chunker       *Chunker
	indexer       *Indexer
	manifest      *store.Manifest
	conversations *store.Conversations
}

// NewIngestor 创建摄取流水线。
func NewIngestor(
	extractor Extractor,
	chunker *Chunker,
	indexer *Indexer,
	manifest *store.Manifest,
	conversations *store.Conversations,
) *Ingestor {
	return &Ingestor{
		extractor:     extractor,
		chunker:       chunker,
		indexer:       indexer,
		manifest:      manifest,
		conversations: conversations,
	}
}

// Ingest 摄取已落盘的上传文件。
// path 为文件存储路径，name 为清理后的原始文件名。
// 成功时发送 complete 事件并返回文档与自动创建的会话。
func (g *Ingestor) Ingest(
	ctx context.Context,
	path, name string,
	size int64,
	embed llm.EmbeddingProvider,
	chat llm.ChatProvider,
	emit IngestEmitFunc,
) (*model.Document, *model.Conversation, error) {
	start := time.Now()

	if err := emit(IngestEvent{Step: StepExtracting, Message: "Extracting elements from document"}); err != nil {
		return nil, nil, err
	}
	raws, err := g.extract(ctx, path, name)
	if err != nil {
		return nil, nil, fmt.Errorf("提取文档元素失败: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil, fmt.Errorf("文档 %s 未提取到任何内容", name)
	}

	if err := emit(IngestEvent{Step: StepChunking, Message: "Chunking extracted text"}); err != nil {
		return nil, nil, err
	}
	elements := g.chunker.Chunk(raws, name)
	stats := Stats(elements)

	if err := emit(IngestEvent{
		Step:    StepSummarizing,
		Message: fmt.Sprintf("Summarizing %d elements", len(elements)),
	}); err != nil {
		return nil, nil, err
	}
	summarizer := NewSummarizer(chat)
	var emitErr error
	err = summarizer.Summarize(ctx, elements, func(completed, total int) {
		if emitErr != nil {
			return
		}
		emitErr = emit(IngestEvent{
			Step:    StepSummarizing,
			Message: fmt.Sprintf("Summarized %d/%d elements", completed, total),
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("生成元素摘要失败: %w", err)
	}
	if emitErr != nil {
		return nil, nil, emitErr
	}

	if err := emit(IngestEvent{Step: StepIndexing, Message: "Embedding summaries and indexing"}); err != nil {
		return nil, nil, err
	}
	if err := g.indexer.Index(ctx, embed, elements); err != nil {
		return nil, nil, err
	}

	if err := emit(IngestEvent{Step: StepSaving, Message: "Saving index to storage"}); err != nil {
		return nil, nil, err
	}

	if err := emit(IngestEvent{Step: StepManifest, Message: "Updating document manifest"}); err != nil {
		return nil, nil, err
	}
	now := time.Now()
	docID := id.NewUUID()
	if existing, ok := g.manifest.GetByName(name); ok {
		// 同名重新摄取沿用原文档 ID，既有会话的引用保持有效。
		docID = existing.ID
		if existing.Path != path {
			if err := os.Remove(existing.Path); err != nil && !os.IsNotExist(err) {
				logger.Warnw("删除旧文档文件失败", "document", docID, "path", existing.Path, "error", err)
			}
		}
	}
	doc := model.Document{
		ID:         docID,
		Name:       name,
		Path:       path,
		Size:       size,
		UploadedAt: now,
		Stats:      stats,
		Preview:    preview(elements),
	}
	if err := g.manifest.Upsert(doc); err != nil {
		return nil, nil, fmt.Errorf("写入文档清单失败: %w", err)
	}

	conv := model.Conversation{
		ID:         id.NewULID(),
		DocumentID: doc.ID,
		Title:      name,
		CreatedAt:  now,
		UpdatedAt:  now,
		Turns:      []model.Turn{},
	}
	if err := g.conversations.Put(conv); err != nil {
		return nil, nil, fmt.Errorf("写入会话失败: %w", err)
	}

	logger.Infow("文档摄取完成",
		"document", doc.ID,
		"name", name,
		"texts", stats.Texts,
		"tables", stats.Tables,
		"images", stats.Images,
		"elapsed", time.Since(start).String(),
	)

	if err := emit(IngestEvent{
		Step:         StepComplete,
		Message:      "Document ready",
		Document:     &doc,
		Conversation: &conv,
	}); err != nil {
		return nil, nil, err
	}
	return &doc, &conv, nil
}

// extractResult 提取阶段的结果。
type extractResult struct {
	raws []RawElement
	err  error
}

// extract 将提取任务提交到摄取工作池，限制并发提取的文档数。
func (g *Ingestor) extract(ctx context.Context, path, name string) ([]RawElement, error) {
	results := make(chan extractResult, 1)
	task := func() {
		raws, err := g.extractor.Extract(ctx, path, name)
		results <- extractResult{raws: raws, err: err}
	}
	if err := pool.SubmitToWithContext(ctx, string(pool.IngestPool), task); err != nil {
		return nil, fmt.Errorf("提交提取任务失败: %w", err)
	}
	r := <-results
	return r.raws, r.err
}

// preview 取首个文本元素的开头作为文档预览。
func preview(elements []model.Element) string {
	for _, e := range elements {
		if e.Kind == model.KindText && e.Text != "" {
			return textutil.TruncateString(e.Text, previewSize)
		}
	}
	return ""
}
