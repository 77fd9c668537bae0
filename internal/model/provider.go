package model

import "strings"

// ProviderType 模型服务商类型
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderAzure     ProviderType = "azure"
	ProviderGemini    ProviderType = "gemini"
	ProviderCustom    ProviderType = "custom"
)

// ProviderConfig 模型服务商配置，apiKey/apiUrl 明文保存
type ProviderConfig struct {
	ID      string       `json:"id" validate:"required"`
	Name    string       `json:"name" validate:"required"`
	Type    ProviderType `json:"type" validate:"required,oneof=openai anthropic azure gemini custom"`
	APIKey  string       `json:"apiKey,omitempty"`
	APIURL  string       `json:"apiUrl,omitempty" validate:"omitempty,url"`
	Enabled bool         `json:"enabled"`
	Models  []string     `json:"models" validate:"dive,required"`
}

// Ready reports whether both connection fields are populated.
// Enabled does not imply this.
func (p ProviderConfig) Ready() bool {
	return strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.APIURL) != ""
}

// HasModel 是否包含指定模型
func (p ProviderConfig) HasModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}
