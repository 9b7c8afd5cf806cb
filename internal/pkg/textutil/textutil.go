// Package textutil 提供文档处理相关的文本工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity 将余弦相似度归一化到 [0, 1] 范围。
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}

// HashString 计算字符串的 MD5 哈希值。
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// SplitIntoChunks 将文本按固定窗口分割成重叠的块。
// chunkSize 是每个块的大小（Unicode 字符数），overlap 是块之间的重叠大小。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap

	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// SplitRecursive 按分隔符优先级递归分割文本。
// 依次尝试 separators 中的分隔符，将文本切成不超过 chunkSize
// 的片段并尽量贪心合并；片段之间保留最多 overlap 大小的尾部
// 重叠，重叠计入块长，单块长度不超过 chunkSize。
// 所有分隔符都无法切出足够小的片段时退化为固定窗口分割。
// 相同输入产出完全相同的分割结果。
func SplitRecursive(text string, separators []string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if utf8.RuneCountInString(text) <= chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	pieces := splitBySeparators(text, separators, chunkSize)
	return mergePieces(pieces, chunkSize, overlap)
}

// splitBySeparators 将文本切成都不超过 chunkSize 的片段。
// 分隔符保留在前一个片段的末尾，保证拼接后与原文一致。
func splitBySeparators(text string, separators []string, chunkSize int) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return SplitIntoChunks(text, chunkSize, 0)
	}

	sep := separators[0]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// 当前分隔符不存在，尝试下一个。
		return splitBySeparators(text, separators[1:], chunkSize)
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > chunkSize {
			pieces = append(pieces, splitBySeparators(part, separators[1:], chunkSize)...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// mergePieces 贪心合并片段直到接近 chunkSize，并在块之间保留重叠。
// 重叠尾部计入块长预算，必要时截短，单块长度不超过 chunkSize。
func mergePieces(pieces []string, chunkSize, overlap int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0
	// newLen 统计自上次产块以来新增的内容，避免产出仅含重叠尾部的块。
	newLen := 0
	// prev 保存上一个完整块，用于截取重叠尾部。
	prev := ""

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if newLen > 0 && currentLen+pieceLen > chunkSize {
			prev = current.String()
			chunks = append(chunks, prev)
			current.Reset()
			currentLen = 0
			newLen = 0
		}
		if newLen == 0 && overlap > 0 && prev != "" {
			keep := overlap
			if budget := chunkSize - pieceLen; keep > budget {
				keep = budget
			}
			if keep > 0 {
				tail := tailRunes(prev, keep)
				current.WriteString(tail)
				currentLen = utf8.RuneCountInString(tail)
			}
		}
		current.WriteString(piece)
		currentLen += pieceLen
		newLen += pieceLen
	}
	if newLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
