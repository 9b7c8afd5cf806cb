package biz

import (
	"sort"
	"strings"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/kart-io/docchat/pkg/utils/id"
)

// chunkSeparators 分块边界的优先级顺序。
var chunkSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " "}

// Chunker 将原始元素转换为可索引的模型元素。
// 文本按页聚合后递归分块，表格和图片原样透传。
// 相同输入产出相同的分块序列（ID 除外）。
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker 创建分块器。
func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Chunk 将原始元素转换为带 ID 的模型元素。
// source 为文档标识，记录在每个元素上。
// Sequence 为元素在所在页内的出现序号。
func (c *Chunker) Chunk(raws []RawElement, source string) []model.Element {
	var elements []model.Element
	pageSeq := make(map[int]int)

	next := func(page int) (string, int) {
		s := pageSeq[page]
		pageSeq[page]++
		return id.NewUUID(), s
	}

	// 文本按页聚合，保持页内出现顺序。
	pageTexts := make(map[int][]string)
	var pages []int
	for _, raw := range raws {
		if raw.Kind != RawText {
			continue
		}
		if _, ok := pageTexts[raw.Page]; !ok {
			pages = append(pages, raw.Page)
		}
		pageTexts[raw.Page] = append(pageTexts[raw.Page], raw.Text)
	}
	sort.Ints(pages)

	for _, page := range pages {
		joined := strings.Join(pageTexts[page], "\n\n")
		for _, chunk := range textutil.SplitRecursive(joined, chunkSeparators, c.chunkSize, c.overlap) {
			elemID, sequence := next(page)
			elements = append(elements, model.Element{
				ID:       elemID,
				Kind:     model.KindText,
				Source:   source,
				Page:     page,
				Sequence: sequence,
				Text:     chunk,
			})
		}
	}

	// 表格和图片不分块，保持原始顺序。
	for _, raw := range raws {
		switch raw.Kind {
		case RawTable:
			elemID, sequence := next(raw.Page)
			elements = append(elements, model.Element{
				ID:        elemID,
				Kind:      model.KindTable,
				Source:    source,
				Page:      raw.Page,
				Sequence:  sequence,
				Text:      raw.Text,
				TableHTML: raw.TableHTML,
			})
		case RawImage:
			elemID, sequence := next(raw.Page)
			elements = append(elements, model.Element{
				ID:           elemID,
				Kind:         model.KindImage,
				Source:       source,
				Page:         raw.Page,
				Sequence:     sequence,
				ImageDataURI: raw.ImageDataURI,
			})
		}
	}

	return elements
}

// Stats 统计元素的类型分布。
func Stats(elements []model.Element) model.ElementStats {
	var stats model.ElementStats
	for _, e := range elements {
		switch e.Kind {
		case model.KindText:
			stats.Texts++
		case model.KindTable:
			stats.Tables++
		case model.KindImage:
			stats.Images++
		}
	}
	return stats
}
