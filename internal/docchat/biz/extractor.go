package biz

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// ErrUnsupportedFormat 表示上传的文件格式不受支持。
var ErrUnsupportedFormat = errors.New("不支持的文档格式")

// RawElement 表示切分服务返回的一个原始元素。
type RawElement struct {
	// Kind 元素类型。
	Kind RawKind
	// Page 页码（1 起始，0 表示未知）。
	Page int
	// Text 文本内容或表格的文本表示。
	Text string
	// TableHTML 表格的 HTML 表示，仅表格元素。
	TableHTML string
	// ImageDataURI 图片的 PNG data URI，仅图片元素。
	ImageDataURI string
}

// RawKind 原始元素类型。
type RawKind string

const (
	RawText  RawKind = "text"
	RawTable RawKind = "table"
	RawImage RawKind = "image"
)

// Extractor 定义文档元素提取接口。
type Extractor interface {
	// Extract 将文档文件切分为类型化的原始元素。
	Extract(ctx context.Context, path string, name string) ([]RawElement, error)
}

// PartitionExtractor 通过外部切分服务提取文档元素。
// 服务接收 multipart 文件，返回元素 JSON 数组。
type PartitionExtractor struct {
	url        string
	httpClient *http.Client

	// minWidth/minHeight 过滤装饰性小图的像素阈值。
	minWidth  int
	minHeight int
}

var _ Extractor = (*PartitionExtractor)(nil)

// NewPartitionExtractor 创建切分服务客户端。
func NewPartitionExtractor(url string, minWidth, minHeight int) *PartitionExtractor {
	return &PartitionExtractor{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		minWidth:   minWidth,
		minHeight:  minHeight,
	}
}

// partitionElement 切分服务响应中的单个元素。
type partitionElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber    int    `json:"page_number"`
		TextAsHTML    string `json:"text_as_html"`
		ImageBase64   string `json:"image_base64"`
		ImageMimeType string `json:"image_mime_type"`
	} `json:"metadata"`
}

// Extract 调用切分服务并归一化返回的元素。
// 单个元素的归一化失败只记录日志并跳过，不中断整个文档。
func (e *PartitionExtractor) Extract(ctx context.Context, path string, name string) ([]RawElement, error) {
	if _, err := docutil.DetectFormat(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	resp, err := e.partition(ctx, path, name)
	if err != nil {
		return nil, err
	}

	elements := make([]RawElement, 0, len(resp))
	for i, pe := range resp {
		raw, ok, err := e.normalize(pe)
		if err != nil {
			logger.Warnw("跳过无法归一化的元素",
				"source", name,
				"index", i,
				"type", pe.Type,
				"error", err,
			)
			continue
		}
		if ok {
			elements = append(elements, raw)
		}
	}

	return elements, nil
}

// partition 上传文件到切分服务并解析响应。
func (e *PartitionExtractor) partition(ctx context.Context, path string, name string) ([]partitionElement, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", name)
	if err != nil {
		return nil, fmt.Errorf("构造上传请求失败: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	// 要求服务返回表格 HTML 与图片 base64。
	_ = writer.WriteField("extract_image_block_types", `["Image"]`)
	_ = writer.WriteField("infer_table_structure", "true")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("构造上传请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求切分服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("切分服务返回状态码 %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取切分服务响应失败: %w", err)
	}

	var elements []partitionElement
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("解析切分服务响应失败: %w", err)
	}
	return elements, nil
}

// normalize 将服务元素转换为 RawElement。
// 返回 ok=false 表示元素被有意过滤（空文本、小图等）。
func (e *PartitionExtractor) normalize(pe partitionElement) (RawElement, bool, error) {
	switch strings.ToLower(pe.Type) {
	case "table":
		if strings.TrimSpace(pe.Text) == "" && pe.Metadata.TextAsHTML == "" {
			return RawElement{}, false, nil
		}
		return RawElement{
			Kind:      RawTable,
			Page:      pe.Metadata.PageNumber,
			Text:      pe.Text,
			TableHTML: pe.Metadata.TextAsHTML,
		}, true, nil

	case "image", "figure":
		if pe.Metadata.ImageBase64 == "" {
			return RawElement{}, false, nil
		}
		dataURI, ok, err := e.normalizeImage(pe.Metadata.ImageBase64, pe.Metadata.ImageMimeType)
		if err != nil || !ok {
			return RawElement{}, ok, err
		}
		return RawElement{
			Kind:         RawImage,
			Page:         pe.Metadata.PageNumber,
			ImageDataURI: dataURI,
		}, true, nil

	default:
		// 其余类型（标题、正文、列表项等）统一按文本处理。
		if strings.TrimSpace(pe.Text) == "" {
			return RawElement{}, false, nil
		}
		return RawElement{
			Kind: RawText,
			Page: pe.Metadata.PageNumber,
			Text: pe.Text,
		}, true, nil
	}
}

// normalizeImage 过滤小图并将图片归一化为 PNG data URI。
func (e *PartitionExtractor) normalizeImage(b64 string, _ string) (string, bool, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false, fmt.Errorf("解码图片失败: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("识别图片失败: %w", err)
	}
	if cfg.Width < e.minWidth || cfg.Height < e.minHeight {
		return "", false, nil
	}

	if format != "png" {
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return "", false, fmt.Errorf("解码图片失败: %w", err)
		}
		var pngBuf bytes.Buffer
		if err := png.Encode(&pngBuf, img); err != nil {
			return "", false, fmt.Errorf("转换 PNG 失败: %w", err)
		}
		raw = pngBuf.Bytes()
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), true, nil
}
