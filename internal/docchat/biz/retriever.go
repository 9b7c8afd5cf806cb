package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// RetrievalResult 检索结果。
type RetrievalResult struct {
	// Found 是否检索到任何内容。
	Found bool
	// Context 可直接拼入提示词的上下文。
	Context model.RetrievedContext
}

// Retriever 按查询检索相关元素原文。
type Retriever struct {
	index   store.VectorIndex
	content store.ContentStore

	topK      int
	maxImages int
}

// NewRetriever 创建检索器。
func NewRetriever(index store.VectorIndex, content store.ContentStore, topK, maxImages int) *Retriever {
	return &Retriever{
		index:     index,
		content:   content,
		topK:      topK,
		maxImages: maxImages,
	}
}

// Retrieve 嵌入查询、检索索引并装配上下文。
// 文本与表格合并为带页码标注的文本段，图片按相似度
// 顺序至多保留 maxImages 张。索引与内容不一致（缺失原文）
// 只记录日志并跳过。
func (r *Retriever) Retrieve(ctx context.Context, embed llm.EmbeddingProvider, query string) (*RetrievalResult, error) {
	vector, err := embed.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}

	matches, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("检索索引失败: %w", err)
	}
	if len(matches) == 0 {
		return &RetrievalResult{Found: false}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	blobs, err := r.content.MGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("读取内容存储失败: %w", err)
	}

	var result RetrievalResult
	for i, blob := range blobs {
		if blob == nil {
			logger.Warnw("索引命中但内容缺失", "element", ids[i])
			continue
		}

		var elem model.Element
		if err := json.Unmarshal(blob, &elem); err != nil {
			logger.Warnw("解析元素原文失败", "element", ids[i], "error", err)
			continue
		}

		switch elem.Kind {
		case model.KindImage:
			if len(result.Context.Images) < r.maxImages && elem.ImageDataURI != "" {
				result.Context.Images = append(result.Context.Images, elem.ImageDataURI)
			}
		default:
			content := elem.Text
			if elem.Kind == model.KindTable && elem.TableHTML != "" {
				content = elem.TableHTML
			}
			if strings.TrimSpace(content) == "" {
				continue
			}
			result.Context.Texts = append(result.Context.Texts, model.ContextText{
				Page:    elem.Page,
				Content: content,
			})
		}
	}

	result.Found = !result.Context.Empty()
	return &result, nil
}

// FormatContext 将文本上下文拼接为带页码标注的单个字符串。
func FormatContext(c model.RetrievedContext) string {
	var sb strings.Builder
	for i, t := range c.Texts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Page %d] %s", t.Page, t.Content)
	}
	return sb.String()
}
