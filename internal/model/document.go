// Package model provides data models for the DocChat service.
package model

import (
	"time"
)

// Document 表示清单（manifest）中的一条文档记录。
// 同名上传会覆盖旧记录（按 Name upsert）。
type Document struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	Size       int64        `json:"size"`
	UploadedAt time.Time    `json:"uploaded_at"`
	Stats      ElementStats `json:"stats"`
	// Preview 文档首个文本块的截断预览，可能为空。
	Preview string `json:"preview,omitempty"`
}

// RetrievedContext 表示一次检索返回的、可直接拼入提示词的上下文。
type RetrievedContext struct {
	// Texts 带页码标注的文本段（含表格的文本表示）。
	Texts []ContextText `json:"texts"`
	// Images 图片 data URI，最多 4 张。
	Images []string `json:"images"`
}

// ContextText 表示单条带页码标注的文本上下文。
type ContextText struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Empty 报告检索结果是否为空（无文本亦无图片）。
func (c RetrievedContext) Empty() bool {
	return len(c.Texts) == 0 && len(c.Images) == 0
}
