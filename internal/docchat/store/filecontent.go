package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/docchat/internal/pkg/docutil"
)

// FileContent 实现基于文件系统的内容存储，每个元素一个文件。
type FileContent struct {
	dir string
}

var _ ContentStore = (*FileContent)(nil)

// NewFileContent 创建文件内容存储并确保目录存在。
func NewFileContent(dir string) (*FileContent, error) {
	if err := docutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("创建内容存储目录失败: %w", err)
	}
	return &FileContent{dir: dir}, nil
}

// Put 保存一个元素的序列化原文。
func (s *FileContent) Put(_ context.Context, id string, data []byte) error {
	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	return docutil.WriteFileAtomic(path, data)
}

// MGet 批量读取，缺失的 ID 对应 nil。
func (s *FileContent) MGet(_ context.Context, ids []string) ([][]byte, error) {
	result := make([][]byte, len(ids))
	for i, id := range ids {
		path, err := s.pathFor(id)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("读取内容 %s 失败: %w", id, err)
		}
		result[i] = data
	}
	return result, nil
}

// Close 无需释放资源。
func (s *FileContent) Close(_ context.Context) error {
	return nil
}

// pathFor 校验 ID 并返回其存储路径。
func (s *FileContent) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("非法的元素 ID: %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}
