package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
)

func TestFileContentPutMGet(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFileContent(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a", []byte(`{"kind":"text"}`)))
	require.NoError(t, s.Put(ctx, "b", []byte(`{"kind":"table"}`)))

	// 缺失的 ID 对应 nil，结果与请求等长且同序
	result, err := s.MGet(ctx, []string{"a", "missing", "b"})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, []byte(`{"kind":"text"}`), result[0])
	assert.Nil(t, result[1])
	assert.Equal(t, []byte(`{"kind":"table"}`), result[2])
}

func TestFileContentOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFileContent(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a", []byte("v1")))
	require.NoError(t, s.Put(ctx, "a", []byte("v2")))

	result, err := s.MGet(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), result[0])
}

func TestFileContentInvalidID(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewFileContent(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(ctx, "", []byte("x")))
	assert.Error(t, s.Put(ctx, "../escape", []byte("x")))
	assert.Error(t, s.Put(ctx, "a/b", []byte("x")))
}
