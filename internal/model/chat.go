package model

import "time"

// DefaultTopicTitle 新建话题的占位标题
const DefaultTopicTitle = "新话题"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Assistant 可复用的系统提示词人设
type Assistant struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name" validate:"required"`
	Description  string    `gorm:"size:500" json:"description"`
	Icon         string    `gorm:"size:32" json:"icon"`
	SystemPrompt string    `gorm:"type:text" json:"systemPrompt"`
	IsDefault    bool      `gorm:"default:false" json:"isDefault,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Topic 属于某个助手的对话
type Topic struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	AssistantID string    `gorm:"size:36;index;not null" json:"assistantId"`
	Messages    []Message `gorm:"foreignKey:TopicID" json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Message 话题中的一条消息，Seq 只增不改
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TopicID   string    `gorm:"size:36;index:idx_topic_seq,unique;not null" json:"-"`
	Seq       int       `gorm:"index:idx_topic_seq,unique;not null" json:"-"`
	Role      Role      `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
	Model     string    `gorm:"size:255" json:"model,omitempty"`
	Tokens    string    `gorm:"size:64" json:"tokens,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultAssistants 首次启动时写入的助手
func DefaultAssistants() []Assistant {
	return []Assistant{
		{ID: "1", Name: "默认助手", Description: "通用的AI助手", Icon: "🤖", SystemPrompt: "你是一个友好、专业的AI助手，能够回答各种问题并提供帮助。", IsDefault: true},
		{ID: "2", Name: "策略产品经理", Description: "专业的产品策略顾问", Icon: "💼", SystemPrompt: "你是一名资深的策略产品经理，擅长产品规划、需求分析和策略制定。你对市场趋势和用户需求有深刻的理解。"},
		{ID: "3", Name: "商家运营", Description: "电商运营专家", Icon: "🛒", SystemPrompt: "你是一位经验丰富的电商运营专家，精通店铺运营、营销推广、数据分析等各个方面。"},
		{ID: "4", Name: "社群运营", Description: "社群管理与运营", Icon: "👥", SystemPrompt: "你是一名专业的社群运营专家，擅长社群建设、用户维护、活动策划等工作。"},
		{ID: "5", Name: "市场营销", Description: "市场策略与营销", Icon: "📊", SystemPrompt: "你是一名专业的市场营销专家，你对营销策略和品牌推广有着深厚的理解，擅长通过心理学原理影响购买行为。"},
		{ID: "6", Name: "要点精炼", Description: "内容提炼与总结", Icon: "✨", SystemPrompt: "你是一个内容提炼专家，擅长从长文本中提取关键信息，总结要点，用简洁的语言表达复杂的内容。"},
	}
}
