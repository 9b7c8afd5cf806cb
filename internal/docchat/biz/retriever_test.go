package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// fakeIndex 返回预设命中的相似度索引。
type fakeIndex struct {
	matches   []store.Match
	upserted  []store.IndexEntry
	upsertErr error
}

func (f *fakeIndex) Upsert(_ context.Context, entries []store.IndexEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, entries...)
	return nil
}
func (f *fakeIndex) Search(context.Context, []float32, int) ([]store.Match, error) {
	return f.matches, nil
}
func (f *fakeIndex) Count(context.Context) (int64, error) { return int64(len(f.matches)), nil }
func (f *fakeIndex) Close(context.Context) error          { return nil }

// fakeContent 内存内容存储。
type fakeContent struct {
	blobs map[string][]byte
}

func (f *fakeContent) Put(_ context.Context, id string, data []byte) error {
	if f.blobs == nil {
		f.blobs = make(map[string][]byte)
	}
	f.blobs[id] = data
	return nil
}

func (f *fakeContent) MGet(_ context.Context, ids []string) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = f.blobs[id]
	}
	return out, nil
}

func (f *fakeContent) Close(context.Context) error { return nil }

func mustPutElement(t *testing.T, content *fakeContent, e model.Element) {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, content.Put(context.Background(), e.ID, data))
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, &fakeContent{}, 20, 4)

	result, err := r.Retrieve(context.Background(), &fakeEmbed{}, "任意问题")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.True(t, result.Context.Empty())
}

func TestRetrieveAssemblesContext(t *testing.T) {
	content := &fakeContent{}
	mustPutElement(t, content, model.Element{ID: "t1", Kind: model.KindText, Page: 2, Text: "文本内容"})
	mustPutElement(t, content, model.Element{ID: "tab1", Kind: model.KindTable, Page: 5, Text: "表格文本", TableHTML: "<table>x</table>"})
	mustPutElement(t, content, model.Element{ID: "img1", Kind: model.KindImage, Page: 3, ImageDataURI: "data:image/png;base64,aGk="})

	index := &fakeIndex{matches: []store.Match{
		{ID: "t1", Score: 0.9},
		{ID: "img1", Score: 0.8},
		{ID: "tab1", Score: 0.7},
	}}

	r := NewRetriever(index, content, 20, 4)
	result, err := r.Retrieve(context.Background(), &fakeEmbed{}, "问题")
	require.NoError(t, err)

	assert.True(t, result.Found)
	require.Len(t, result.Context.Texts, 2)
	assert.Equal(t, model.ContextText{Page: 2, Content: "文本内容"}, result.Context.Texts[0])
	// 表格使用 HTML 表示。
	assert.Equal(t, model.ContextText{Page: 5, Content: "<table>x</table>"}, result.Context.Texts[1])
	assert.Equal(t, []string{"data:image/png;base64,aGk="}, result.Context.Images)

	formatted := FormatContext(result.Context)
	assert.Contains(t, formatted, "[Page 2] 文本内容")
	assert.Contains(t, formatted, "[Page 5] <table>x</table>")
}

func TestRetrieveImageCap(t *testing.T) {
	content := &fakeContent{}
	var matches []store.Match
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5", "i6"} {
		mustPutElement(t, content, model.Element{ID: id, Kind: model.KindImage, Page: 1, ImageDataURI: "data:image/png;base64," + id})
		matches = append(matches, store.Match{ID: id, Score: 0.5})
	}

	r := NewRetriever(&fakeIndex{matches: matches}, content, 20, 4)
	result, err := r.Retrieve(context.Background(), &fakeEmbed{}, "问题")
	require.NoError(t, err)

	// 按相似度顺序至多保留 4 张。
	require.Len(t, result.Context.Images, 4)
	assert.Equal(t, "data:image/png;base64,i1", result.Context.Images[0])
	assert.Equal(t, "data:image/png;base64,i4", result.Context.Images[3])
}

func TestRetrieveSkipsMissingContent(t *testing.T) {
	content := &fakeContent{}
	mustPutElement(t, content, model.Element{ID: "present", Kind: model.KindText, Page: 1, Text: "存在的内容"})

	index := &fakeIndex{matches: []store.Match{
		{ID: "missing", Score: 0.9},
		{ID: "present", Score: 0.8},
	}}

	r := NewRetriever(index, content, 20, 4)
	result, err := r.Retrieve(context.Background(), &fakeEmbed{}, "问题")
	require.NoError(t, err)

	// 索引命中但内容缺失的条目被跳过，不报错。
	assert.True(t, result.Found)
	require.Len(t, result.Context.Texts, 1)
	assert.Equal(t, "存在的内容", result.Context.Texts[0].Content)
}
