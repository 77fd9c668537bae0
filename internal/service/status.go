package service

import (
	"time"

	"github.com/dustin/go-humanize"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

type StatusService struct {
	store     *store.Store
	chat      *ChatService
	providers *ProviderService
	documents *DocumentService
}

type SystemStatus struct {
	// 配置文件
	StorePath     string `json:"store_path"`
	StoreSize     int64  `json:"store_size"`
	StoreSizeText string `json:"store_size_text"`

	// 聊天统计
	TotalAssistants int64 `json:"total_assistants"`
	TotalTopics     int64 `json:"total_topics"`
	TotalMessages   int64 `json:"total_messages"`

	// 文档统计
	TotalDocuments      int `json:"total_documents"`
	ProcessingDocuments int `json:"processing_documents"`

	// 模型服务商
	TotalProviders   int  `json:"total_providers"`
	EnabledProviders int  `json:"enabled_providers"`
	DefaultReady     bool `json:"default_ready"`

	// 定时任务信息
	NextBackupTime time.Time `json:"next_backup_time"`
}

func NewStatusService(st *store.Store, chat *ChatService, providers *ProviderService, documents *DocumentService) *StatusService {
	return &StatusService{store: st, chat: chat, providers: providers, documents: documents}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus() (*SystemStatus, error) {
	status := &SystemStatus{StorePath: s.store.Path()}

	size, err := s.store.Size()
	if err != nil {
		return nil, err
	}
	status.StoreSize = size
	status.StoreSizeText = humanize.Bytes(uint64(size))

	// 统计聊天数据
	status.TotalAssistants, status.TotalTopics, status.TotalMessages, err = s.chat.Counts()
	if err != nil {
		return nil, err
	}

	// 统计文档
	for _, d := range s.documents.ListDocuments() {
		status.TotalDocuments++
		if d.Status == model.DocumentProcessing {
			status.ProcessingDocuments++
		}
	}

	// 统计服务商
	for _, p := range s.providers.ListProviders() {
		status.TotalProviders++
		if p.Enabled {
			status.EnabledProviders++
		}
	}
	_, _, err = s.providers.ResolveDefault()
	status.DefaultReady = err == nil

	return status, nil
}
