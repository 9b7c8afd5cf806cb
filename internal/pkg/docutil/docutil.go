// Package docutil 提供文档文件处理相关的工具函数。
package docutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format 表示支持的文档格式。
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
)

// DetectFormat 根据文件名后缀识别文档格式。
// 不支持的后缀返回错误。
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".pptx":
		return FormatPPTX, nil
	default:
		return "", fmt.Errorf("不支持的文档格式: %s", filepath.Ext(name))
	}
}

// SanitizeFileName 清理上传文件名，去除路径成分，防止路径穿越。
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return "unnamed"
	}
	return name
}

// EnsureDir 确保目录存在，如果不存在则创建。
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// WriteFileAtomic 原子写入文件：先写临时文件再重命名，
// 避免崩溃时留下半写状态。
func WriteFileAtomic(path string, data []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists 检查目录是否存在。
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
