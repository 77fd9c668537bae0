package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-knowledge/internal/bridge"
	"go-knowledge/internal/model"
	"go-knowledge/internal/service"
	"go-knowledge/internal/store"
)

// 上传文件大小上限
const maxUploadSize = 64 << 20

type Handler struct {
	chat      *service.ChatService
	providers *service.ProviderService
	shortcuts *service.ShortcutService
	documents *service.DocumentService
	backups   *service.BackupService
	status    *service.StatusService
	bridge    *bridge.Bridge
	scheduler interface {
		GetNextBackupTime() time.Time
	}
}

// Services 处理器依赖的服务
type Services struct {
	Chat      *service.ChatService
	Providers *service.ProviderService
	Shortcuts *service.ShortcutService
	Documents *service.DocumentService
	Backups   *service.BackupService
	Status    *service.StatusService
	Bridge    *bridge.Bridge
}

func NewHandler(s Services) *Handler {
	return &Handler{
		chat:      s.Chat,
		providers: s.Providers,
		shortcuts: s.Shortcuts,
		documents: s.Documents,
		backups:   s.Backups,
		status:    s.Status,
		bridge:    s.Bridge,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextBackupTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 渲染进程调用的存储通道
	h.bridge.RegisterRoutes(r)

	api := r.Group("/api")
	{
		// Providers
		api.GET("/providers", h.ListProviders)
		api.POST("/providers", h.CreateProvider)
		api.PUT("/providers/:id", h.UpdateProvider)
		api.DELETE("/providers/:id", h.DeleteProvider)
		api.POST("/providers/:id/enabled", h.SetProviderEnabled)
		api.POST("/providers/:id/models", h.AddProviderModel)
		api.DELETE("/providers/:id/models/:model", h.RemoveProviderModel)
		api.POST("/providers/:id/test", h.TestProvider)
		api.GET("/providers/:id/remote-models", h.ListRemoteModels)
		api.PUT("/default-model", h.SetDefaultModel)

		// Shortcuts
		api.GET("/shortcuts", h.ListShortcuts)
		api.PUT("/shortcuts/:id", h.UpdateShortcut)
		api.POST("/shortcuts/:id/reset", h.ResetShortcut)
		api.POST("/shortcuts/reset", h.ResetAllShortcuts)

		// Documents
		api.GET("/documents", h.ListDocuments)
		api.POST("/documents", h.UploadDocument)
		api.PUT("/documents/:id/progress", h.UpdateDocumentProgress)
		api.DELETE("/documents/:id", h.DeleteDocument)

		// Assistants
		api.GET("/assistants", h.ListAssistants)
		api.POST("/assistants", h.CreateAssistant)
		api.PUT("/assistants/:id", h.UpdateAssistant)
		api.DELETE("/assistants/:id", h.DeleteAssistant)
		api.GET("/assistants/:id/topics", h.ListTopics)
		api.POST("/assistants/:id/topics", h.CreateTopic)

		// Topics
		api.GET("/topics/:id", h.GetTopic)
		api.PUT("/topics/:id", h.RenameTopic)
		api.DELETE("/topics/:id", h.DeleteTopic)
		api.POST("/topics/:id/messages", h.SendMessage)
		api.DELETE("/topics/:id/messages", h.ClearMessages)

		// Backups
		api.GET("/backups", h.ListBackups)
		api.POST("/backups", h.CreateBackup)
		api.POST("/backups/:name/restore", h.RestoreBackup)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// fail 按错误类型选择状态码
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// bindOptionalJSON 请求体为空时跳过绑定，格式错误时已写入 400
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

// ===== 模型服务商 =====

func (h *Handler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, h.providers.ListProviders())
}

func (h *Handler) CreateProvider(c *gin.Context) {
	h.saveProvider(c, true)
}

func (h *Handler) UpdateProvider(c *gin.Context) {
	h.saveProvider(c, false)
}

func (h *Handler) saveProvider(c *gin.Context, create bool) {
	var p model.ProviderConfig
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	if !create {
		p.ID = c.Param("id")
	}
	if err := h.providers.SaveProvider(p, create); err != nil {
		fail(c, err)
		return
	}
	saved, err := h.providers.GetProvider(p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) DeleteProvider(c *gin.Context) {
	if err := h.providers.DeleteProvider(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) SetProviderEnabled(c *gin.Context) {
	var input struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.providers.SetProviderEnabled(c.Param("id"), input.Enabled); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": input.Enabled})
}

func (h *Handler) AddProviderModel(c *gin.Context) {
	var input struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.providers.AddProviderModel(c.Param("id"), input.Model); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "added"})
}

func (h *Handler) RemoveProviderModel(c *gin.Context) {
	if err := h.providers.RemoveProviderModel(c.Param("id"), c.Param("model")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

func (h *Handler) TestProvider(c *gin.Context) {
	var input struct {
		Model string `json:"model"`
	}
	if !bindOptionalJSON(c, &input) {
		return
	}

	result, err := h.providers.TestProvider(c.Request.Context(), c.Param("id"), input.Model)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListRemoteModels(c *gin.Context) {
	models, err := h.providers.ListRemoteModels(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) SetDefaultModel(c *gin.Context) {
	var input struct {
		ProviderID string `json:"providerId"`
		Model      string `json:"model"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.providers.SetDefault(input.ProviderID, input.Model); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, input)
}

// ===== 快捷键 =====

func (h *Handler) ListShortcuts(c *gin.Context) {
	c.JSON(http.StatusOK, h.shortcuts.ListShortcuts())
}

func (h *Handler) UpdateShortcut(c *gin.Context) {
	var input struct {
		Key     *string `json:"key"`
		Enabled *bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	if input.Key == nil && input.Enabled == nil {
		badRequest(c, errors.New("key or enabled required"))
		return
	}

	id := c.Param("id")
	var (
		item model.ShortcutItem
		err  error
	)
	if input.Key != nil {
		if item, err = h.shortcuts.UpdateShortcutKey(id, *input.Key); err != nil {
			fail(c, err)
			return
		}
	}
	if input.Enabled != nil {
		if item, err = h.shortcuts.SetShortcutEnabled(id, *input.Enabled); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) ResetShortcut(c *gin.Context) {
	item, err := h.shortcuts.ResetShortcut(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) ResetAllShortcuts(c *gin.Context) {
	items, err := h.shortcuts.ResetAllShortcuts()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ===== 文档 =====

func (h *Handler) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, h.documents.ListDocuments())
}

func (h *Handler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	if fh.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	doc, err := h.documents.AddDocument(fh.Filename, io.LimitReader(f, maxUploadSize))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) UpdateDocumentProgress(c *gin.Context) {
	var input struct {
		Progress *int   `json:"progress"`
		Status   string `json:"status" binding:"omitempty,oneof=processing completed error"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	id := c.Param("id")
	var (
		doc model.DocumentItem
		err error
	)
	switch model.DocumentStatus(input.Status) {
	case model.DocumentCompleted:
		doc, err = h.documents.Complete(id)
	case model.DocumentError:
		doc, err = h.documents.Fail(id)
	default:
		if input.Progress == nil {
			badRequest(c, errors.New("progress required"))
			return
		}
		doc, err = h.documents.UpdateProgress(id, *input.Progress)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.documents.DeleteDocument(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ===== 助手 =====

func (h *Handler) ListAssistants(c *gin.Context) {
	items, err := h.chat.ListAssistants()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAssistant(c *gin.Context) {
	var a model.Assistant
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.chat.AddAssistant(a)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateAssistant(c *gin.Context) {
	var u service.AssistantUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.chat.UpdateAssistant(c.Param("id"), u)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAssistant(c *gin.Context) {
	if err := h.chat.DeleteAssistant(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ===== 话题 =====

func (h *Handler) ListTopics(c *gin.Context) {
	topics, err := h.chat.ListTopics(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, topics)
}

func (h *Handler) CreateTopic(c *gin.Context) {
	var input struct {
		Title string `json:"title"`
	}
	if !bindOptionalJSON(c, &input) {
		return
	}

	topic, err := h.chat.AddTopic(input.Title, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (h *Handler) GetTopic(c *gin.Context) {
	topic, err := h.chat.GetTopic(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (h *Handler) RenameTopic(c *gin.Context) {
	var input struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.chat.UpdateTopicTitle(c.Param("id"), input.Title); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": input.Title})
}

func (h *Handler) DeleteTopic(c *gin.Context) {
	if err := h.chat.DeleteTopic(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) ClearMessages(c *gin.Context) {
	if err := h.chat.ClearMessages(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleared"})
}

// SendMessage ?stream=true 时以 SSE 推送增量（delta 事件），最后推送 done 事件
func (h *Handler) SendMessage(c *gin.Context) {
	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	topicID := c.Param("id")

	if c.Query("stream") != "true" {
		result, err := h.chat.SendMessage(c.Request.Context(), topicID, input.Content, nil)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	// 话题不存在时仍返回普通 JSON 错误
	if _, err := h.chat.GetTopic(topicID); err != nil {
		fail(c, err)
		return
	}

	deltas := make(chan string, 64)
	done := make(chan struct{})
	var (
		result *service.SendResult
		err    error
	)
	go func() {
		defer close(done)
		defer close(deltas)
		result, err = h.chat.SendMessage(c.Request.Context(), topicID, input.Content, func(s string) {
			select {
			case deltas <- s:
			case <-c.Request.Context().Done():
			}
		})
	}()

	c.Stream(func(w io.Writer) bool {
		if d, ok := <-deltas; ok {
			c.SSEvent("delta", d)
			return true
		}
		<-done
		if err != nil {
			c.SSEvent("error", err.Error())
			return false
		}
		c.SSEvent("done", result)
		return false
	})
}

// ===== 备份 =====

func (h *Handler) ListBackups(c *gin.Context) {
	files, err := h.backups.ListBackups()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) CreateBackup(c *gin.Context) {
	f, err := h.backups.Backup()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) RestoreBackup(c *gin.Context) {
	if err := h.backups.Restore(c.Param("name")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "restored"})
}

// ===== 状态 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus()
	if err != nil {
		fail(c, err)
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextBackupTime = h.scheduler.GetNextBackupTime()
	}

	c.JSON(http.StatusOK, status)
}
