package model

// ShortcutItem 可自定义的快捷键，DefaultKey 不可修改
type ShortcutItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DefaultKey  string `json:"defaultKey"`
	CurrentKey  string `json:"currentKey"`
	Category    string `json:"category"`
	Enabled     bool   `json:"enabled"`
}
