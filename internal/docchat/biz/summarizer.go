package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/infra/pool"
	"github.com/kart-io/docchat/pkg/llm"
)

// 摘要提示词。
const (
	imageSummaryPrompt = `Describe this image in detail. Include any visual elements, ` +
		`diagrams, text visible in the image, and charts. ` +
		`Be specific about what information the image conveys.`

	tableSummaryPrompt = `Summarize the following table. Describe what data it contains ` +
		`and any notable patterns or key values.`

	// firstChunkPrefix 文档首个文本块的摘要前缀，
	// 提高文档主题类查询的召回率。
	firstChunkPrefix = "This document/research paper discusses: "
)

// 摘要失败时的回退文本。
const (
	imageFallbackSummary  = "Image content could not be analyzed."
	tableFallbackPrefix   = "Table content: "
	tableFallbackTextSize = 500
)

// ProgressFunc 每完成一个元素调用一次。
type ProgressFunc func(completed, total int)

// summaryResult 单个元素的摘要结果，携带元素 ID 配对。
type summaryResult struct {
	id      string
	summary string
}

// Summarizer 并发为元素生成摘要。
// 文本直接透传，表格和图片调用模型生成描述；
// 单个元素失败使用回退文本，不中断整体流程。
type Summarizer struct {
	chat     llm.ChatProvider
	poolName string
}

// NewSummarizer 创建摘要器，任务提交到指定的工作池。
func NewSummarizer(chat llm.ChatProvider) *Summarizer {
	return &Summarizer{
		chat:     chat,
		poolName: string(pool.SummarizePool),
	}
}

// Summarize 为所有元素生成摘要并回填 Summary 字段。
// 任务按元素提交到工作池，结果按完成顺序收取，
// 通过元素 ID 配对写回，与提交顺序无关。
func (s *Summarizer) Summarize(ctx context.Context, elements []model.Element, progress ProgressFunc) error {
	if len(elements) == 0 {
		return nil
	}

	firstText := firstTextElementID(elements)
	results := make(chan summaryResult, len(elements))

	submitted := 0
	for i := range elements {
		elem := elements[i]
		task := func() {
			results <- summaryResult{
				id:      elem.ID,
				summary: s.summarizeOne(ctx, elem, elem.ID == firstText),
			}
		}
		if err := pool.SubmitToWithContext(ctx, s.poolName, task); err != nil {
			return fmt.Errorf("提交摘要任务失败: %w", err)
		}
		submitted++
	}

	byID := make(map[string]*model.Element, len(elements))
	for i := range elements {
		byID[elements[i].ID] = &elements[i]
	}

	for completed := 0; completed < submitted; {
		select {
		case r := <-results:
			if e, ok := byID[r.id]; ok {
				e.Summary = r.summary
			}
			completed++
			if progress != nil {
				progress(completed, submitted)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// summarizeOne 按元素类型生成摘要。
func (s *Summarizer) summarizeOne(ctx context.Context, elem model.Element, isFirstText bool) string {
	switch elem.Kind {
	case model.KindText:
		// 文本不经过模型，首块加前缀。
		if isFirstText {
			return firstChunkPrefix + elem.Text
		}
		return elem.Text

	case model.KindTable:
		prompt := tableSummaryPrompt + "\n\n"
		if elem.TableHTML != "" {
			prompt += "HTML:\n" + textutil.TruncateString(elem.TableHTML, 2000) + "\n\n"
		}
		if elem.Text != "" {
			prompt += "Text:\n" + textutil.TruncateString(elem.Text, 1000)
		}
		summary, err := s.chat.Generate(ctx, prompt, "")
		if err != nil || summary == "" {
			logger.Warnw("表格摘要失败，使用回退文本", "element", elem.ID, "error", err)
			return tableFallbackPrefix + textutil.TruncateString(elem.Text, tableFallbackTextSize)
		}
		return summary

	case model.KindImage:
		summary, err := s.summarizeImage(ctx, elem)
		if err != nil || summary == "" {
			logger.Warnw("图片摘要失败，使用回退文本", "element", elem.ID, "error", err)
			return imageFallbackSummary
		}
		return summary

	default:
		return elem.Text
	}
}

// summarizeImage 以多模态消息请求图片描述。
func (s *Summarizer) summarizeImage(ctx context.Context, elem model.Element) (string, error) {
	return s.chat.Chat(ctx, []llm.Message{
		{
			Role:    llm.RoleUser,
			Content: imageSummaryPrompt,
			Images:  []string{elem.ImageDataURI},
		},
	})
}

// firstTextElementID 返回文档首个文本块的 ID。
// 取页码最小、序号最小的文本元素，未知页码（0）视为最前。
func firstTextElementID(elements []model.Element) string {
	bestID := ""
	bestPage, bestSeq := 0, 0
	for _, e := range elements {
		if e.Kind != model.KindText {
			continue
		}
		if bestID == "" || e.Page < bestPage || (e.Page == bestPage && e.Sequence < bestSeq) {
			bestID = e.ID
			bestPage = e.Page
			bestSeq = e.Sequence
		}
	}
	return bestID
}
