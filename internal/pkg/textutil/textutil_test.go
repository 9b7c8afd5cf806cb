package textutil_test

import (
	"strings"
	"testing"

	"github.com/kart-io/docchat/internal/pkg/textutil"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "相同向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "正交向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "相反向量",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "空向量",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "长度不匹配",
			a:        []float32{1.0, 2.0},
			b:        []float32{1.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		expected   float64
	}{
		{"最大相似度", 1.0, 1.0},
		{"最小相似度", -1.0, 0.0},
		{"中等相似度", 0.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.NormalizeCosineSimilarity(tt.similarity)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestHashString(t *testing.T) {
	// 相同输入应产生相同输出
	hash1 := textutil.HashString("test")
	hash2 := textutil.HashString("test")
	assert.Equal(t, hash1, hash2)

	// 不同输入应产生不同输出
	hash3 := textutil.HashString("different")
	assert.NotEqual(t, hash1, hash3)

	// 哈希应为32字符的十六进制字符串
	assert.Len(t, hash1, 32)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "短于限制",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "等于限制",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "超过限制",
			input:    "hello world",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "中文字符",
			input:    "你好世界",
			maxLen:   2,
			expected: "你好",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := textutil.TruncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		expected  int // 期望的块数
	}{
		{
			name:      "短文本无需分割",
			text:      "hello",
			chunkSize: 10,
			overlap:   2,
			expected:  1,
		},
		{
			name:      "正常分割",
			text:      "hello world test",
			chunkSize: 5,
			overlap:   2,
			expected:  5,
		},
		{
			name:      "无重叠分割",
			text:      "abcdefghij",
			chunkSize: 5,
			overlap:   0,
			expected:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := textutil.SplitIntoChunks(tt.text, tt.chunkSize, tt.overlap)
			assert.Len(t, chunks, tt.expected)
		})
	}
}

func TestSplitRecursive(t *testing.T) {
	separators := []string{"\n\n", "\n", ". ", " "}

	t.Run("短文本原样返回", func(t *testing.T) {
		chunks := textutil.SplitRecursive("hello world", separators, 100, 20)
		assert.Equal(t, []string{"hello world"}, chunks)
	})

	t.Run("空文本返回空", func(t *testing.T) {
		chunks := textutil.SplitRecursive("", separators, 100, 20)
		assert.Empty(t, chunks)
	})

	t.Run("按段落边界分割", func(t *testing.T) {
		text := strings.Repeat("aaaa ", 10) + "\n\n" + strings.Repeat("bbbb ", 10)
		chunks := textutil.SplitRecursive(text, separators, 60, 0)
		assert.Len(t, chunks, 2)
		assert.Contains(t, chunks[0], "aaaa")
		assert.Contains(t, chunks[1], "bbbb")
	})

	t.Run("每块不超过大小限制", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 100; i++ {
			sb.WriteString("This is a sentence about nothing in particular. ")
		}
		chunks := textutil.SplitRecursive(sb.String(), separators, 200, 40)
		assert.Greater(t, len(chunks), 1)
		// 重叠尾部计入块长。
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 200)
		}
	})

	t.Run("重叠接近块大小时截短", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 40; i++ {
			sb.WriteString("sentence number here. ")
		}
		chunks := textutil.SplitRecursive(sb.String(), separators, 100, 90)
		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 100)
		}
	})

	t.Run("块之间保留重叠", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 50; i++ {
			sb.WriteString("word word word word. ")
		}
		chunks := textutil.SplitRecursive(sb.String(), separators, 100, 30)
		assert.Greater(t, len(chunks), 1)
		tail := string([]rune(chunks[0])[len([]rune(chunks[0]))-10:])
		assert.Contains(t, chunks[1], strings.TrimSpace(tail))
	})

	t.Run("确定性", func(t *testing.T) {
		text := strings.Repeat("Some sentence here. Another one follows.\n", 30)
		a := textutil.SplitRecursive(text, separators, 150, 30)
		b := textutil.SplitRecursive(text, separators, 150, 30)
		assert.Equal(t, a, b)
	})

	t.Run("无分隔符时退化为固定窗口", func(t *testing.T) {
		text := strings.Repeat("x", 500)
		chunks := textutil.SplitRecursive(text, separators, 100, 0)
		assert.Len(t, chunks, 5)
	})
}
