// Package handler provides HTTP handlers for the DocChat service.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/pkg/docutil"
	"github.com/kart-io/docchat/internal/pkg/httputils"
	"github.com/kart-io/docchat/pkg/utils/id"
)

// apiKeyHeader 请求级凭证的请求头。
const apiKeyHeader = "X-API-Key"

// Handler handles DocChat HTTP requests.
type Handler struct {
	service   biz.Service
	uploadDir string
}

// NewHandler creates a new Handler.
func NewHandler(service biz.Service, uploadDir string) *Handler {
	return &Handler{
		service:   service,
		uploadDir: uploadDir,
	}
}

// Upload 接收上传的文档并流式返回摄取进度。
// 摄取开始后出现的错误以单个 error 事件结束流。
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputils.WriteError(c, http.StatusBadRequest, fmt.Errorf("缺少上传文件: %w", err))
		return
	}

	name := docutil.SanitizeFileName(fileHeader.Filename)
	if _, err := docutil.DetectFormat(name); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err)
		return
	}

	if err := docutil.EnsureDir(h.uploadDir); err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}
	// 落盘路径带随机前缀，避免并发上传同名文件互相覆盖。
	path := filepath.Join(h.uploadDir, id.NewUUID()+"_"+name)
	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, fmt.Errorf("保存上传文件失败: %w", err))
		return
	}

	w := httputils.NewNDJSONWriter(c)
	err = h.service.Upload(c.Request.Context(), path, name, fileHeader.Size, c.GetHeader(apiKeyHeader),
		func(event biz.IngestEvent) error {
			return w.Write(event)
		})
	if err != nil {
		logger.Errorw("文档摄取失败", "name", name, "error", err)
		_ = w.Write(biz.IngestEvent{Step: biz.StepError, Message: err.Error()})
	}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Question       string `json:"question" binding:"required"`
}

// Query 在会话上下文中回答问题，以 NDJSON 流式返回。
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err)
		return
	}

	if _, ok := h.service.Chat(req.ConversationID); !ok {
		httputils.WriteError(c, http.StatusNotFound, fmt.Errorf("会话不存在: %s", req.ConversationID))
		return
	}

	w := httputils.NewNDJSONWriter(c)
	err := h.service.Query(c.Request.Context(), req.ConversationID, req.Question, c.GetHeader(apiKeyHeader),
		func(event biz.QueryEvent) error {
			return w.Write(event)
		})
	if err != nil {
		logger.Errorw("查询失败", "conversation", req.ConversationID, "error", err)
		_ = w.Write(gin.H{"type": "error", "message": err.Error()})
	}
}

// ListDocuments 列出全部文档。
func (h *Handler) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Documents())
}

// DocumentFile 返回文档的原始文件。
func (h *Handler) DocumentFile(c *gin.Context) {
	doc, ok := h.service.Document(c.Param("id"))
	if !ok {
		httputils.WriteError(c, http.StatusNotFound, fmt.Errorf("文档不存在: %s", c.Param("id")))
		return
	}
	if !docutil.FileExists(doc.Path) {
		httputils.WriteError(c, http.StatusNotFound, fmt.Errorf("文档文件缺失: %s", doc.Name))
		return
	}
	c.FileAttachment(doc.Path, doc.Name)
}

// ListChats 列出全部会话。
func (h *Handler) ListChats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Chats())
}

// GetChat 返回单个会话及完整消息历史。
func (h *Handler) GetChat(c *gin.Context) {
	conv, ok := h.service.Chat(c.Param("id"))
	if !ok {
		httputils.WriteError(c, http.StatusNotFound, fmt.Errorf("会话不存在: %s", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteChat 删除会话，必要时级联删除文档。
func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.service.DeleteChat(c.Param("id")); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			httputils.WriteError(c, http.StatusNotFound, err)
			return
		}
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// ValidateKeyRequest represents a key validation request.
type ValidateKeyRequest struct {
	APIKey string `json:"api_key"`
}

// ValidateKey 以一次嵌入探测校验凭证可用性。
func (h *Handler) ValidateKey(c *gin.Context) {
	var req ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err)
		return
	}
	key := req.APIKey
	if key == "" {
		key = c.GetHeader(apiKeyHeader)
	}

	if err := h.service.ValidateKey(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Healthz 健康检查。
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
