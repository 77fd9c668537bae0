package model

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing" // 处理中
	DocumentCompleted  DocumentStatus = "completed"  // 已完成
	DocumentError      DocumentStatus = "error"      // 处理失败
)

// DocumentItem 已导入的文档，Progress 仅在处理中有意义
type DocumentItem struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Size     string         `json:"size"`
	Status   DocumentStatus `json:"status"`
	Progress int            `json:"progress"`
	Type     string         `json:"type"`
}
