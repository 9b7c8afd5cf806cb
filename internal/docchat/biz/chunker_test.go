package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/model"
)

func TestChunkerTextGrouping(t *testing.T) {
	c := NewChunker(2500, 500)

	raws := []RawElement{
		{Kind: RawText, Page: 2, Text: "第二页内容"},
		{Kind: RawText, Page: 1, Text: "第一页第一段"},
		{Kind: RawText, Page: 1, Text: "第一页第二段"},
	}

	elements := c.Chunk(raws, "doc.pdf")
	require.Len(t, elements, 2)

	// 按页码升序输出，页内文本以空行合并。
	assert.Equal(t, 1, elements[0].Page)
	assert.Equal(t, "第一页第一段\n\n第一页第二段", elements[0].Text)
	assert.Equal(t, 2, elements[1].Page)
	assert.Equal(t, "第二页内容", elements[1].Text)

	for _, e := range elements {
		assert.Equal(t, model.KindText, e.Kind)
		assert.Equal(t, "doc.pdf", e.Source)
		assert.NotEmpty(t, e.ID)
	}
}

func TestChunkerSplitsLongText(t *testing.T) {
	c := NewChunker(100, 20)

	raws := []RawElement{
		{Kind: RawText, Page: 1, Text: strings.Repeat("sentence one. ", 50)},
	}

	elements := c.Chunk(raws, "doc.pdf")
	require.Greater(t, len(elements), 1)

	for _, e := range elements {
		assert.LessOrEqual(t, len([]rune(e.Text)), 100, "块大小含重叠不超过 chunkSize")
	}

	// 序号严格递增。
	for i := 1; i < len(elements); i++ {
		assert.Greater(t, elements[i].Sequence, elements[i-1].Sequence)
	}
}

func TestChunkerPassThrough(t *testing.T) {
	c := NewChunker(2500, 500)

	raws := []RawElement{
		{Kind: RawImage, Page: 3, ImageDataURI: "data:image/png;base64,aGk="},
		{Kind: RawText, Page: 1, Text: "正文"},
		{Kind: RawTable, Page: 2, Text: "a b c", TableHTML: "<table><tr><td>a</td></tr></table>"},
	}

	elements := c.Chunk(raws, "doc.pdf")
	require.Len(t, elements, 3)

	// 文本在前，表格和图片按原始顺序跟随。
	assert.Equal(t, model.KindText, elements[0].Kind)
	assert.Equal(t, model.KindImage, elements[1].Kind)
	assert.Equal(t, "data:image/png;base64,aGk=", elements[1].ImageDataURI)
	assert.Equal(t, model.KindTable, elements[2].Kind)
	assert.Equal(t, "<table><tr><td>a</td></tr></table>", elements[2].TableHTML)
	assert.Equal(t, "a b c", elements[2].Text)

	stats := Stats(elements)
	assert.Equal(t, model.ElementStats{Texts: 1, Tables: 1, Images: 1}, stats)
	assert.Equal(t, 3, stats.Count())
}

func TestChunkerPageLocalSequence(t *testing.T) {
	c := NewChunker(2500, 500)

	raws := []RawElement{
		{Kind: RawText, Page: 1, Text: "第一页正文"},
		{Kind: RawImage, Page: 1, ImageDataURI: "data:image/png;base64,aGk="},
		{Kind: RawText, Page: 2, Text: "第二页正文"},
		{Kind: RawTable, Page: 2, Text: "a b", TableHTML: "<table><tr><td>a</td></tr></table>"},
	}

	elements := c.Chunk(raws, "doc.pdf")
	require.Len(t, elements, 4)

	// 序号在每页内独立计数。
	bySeq := map[[2]int]model.ElementKind{}
	for _, e := range elements {
		bySeq[[2]int{e.Page, e.Sequence}] = e.Kind
	}
	assert.Equal(t, model.KindText, bySeq[[2]int{1, 0}])
	assert.Equal(t, model.KindImage, bySeq[[2]int{1, 1}])
	assert.Equal(t, model.KindText, bySeq[[2]int{2, 0}])
	assert.Equal(t, model.KindTable, bySeq[[2]int{2, 1}])
}

func TestChunkerDeterministic(t *testing.T) {
	c := NewChunker(100, 20)
	raws := []RawElement{
		{Kind: RawText, Page: 1, Text: strings.Repeat("word ", 100)},
	}

	first := c.Chunk(raws, "doc.pdf")
	second := c.Chunk(raws, "doc.pdf")
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Page, second[i].Page)
	}
}
