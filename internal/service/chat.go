package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-knowledge/internal/model"
)

// 首条用户消息截取为标题的长度
const topicTitleRunes = 20

type ChatService struct {
	db        *gorm.DB
	llm       *LLMService
	providers *ProviderService
}

// OpenChatDB 打开聊天数据库并迁移表结构
func OpenChatDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open chat db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&model.Assistant{}, &model.Topic{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("migrate chat db: %w", err)
	}
	return db, nil
}

func NewChatService(db *gorm.DB, llm *LLMService, providers *ProviderService) *ChatService {
	return &ChatService{db: db, llm: llm, providers: providers}
}

// SeedAssistants 写入缺失的内置助手
func (s *ChatService) SeedAssistants() error {
	for _, a := range model.DefaultAssistants() {
		if err := s.db.Where("id = ?", a.ID).FirstOrCreate(&a).Error; err != nil {
			return fmt.Errorf("seed assistant %s: %w", a.ID, err)
		}
	}
	return nil
}

// ===== 助手 =====

func (s *ChatService) ListAssistants() ([]model.Assistant, error) {
	var items []model.Assistant
	err := s.db.Order("created_at ASC, id ASC").Find(&items).Error
	return items, err
}

func (s *ChatService) GetAssistant(id string) (*model.Assistant, error) {
	var a model.Assistant
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "assistant", id)
	}
	return &a, nil
}

func (s *ChatService) AddAssistant(a model.Assistant) (*model.Assistant, error) {
	if err := validate.Struct(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	a.ID = uuid.NewString()
	a.IsDefault = false
	if err := s.db.Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// AssistantUpdate 助手可修改字段，nil 表示不修改
type AssistantUpdate struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Icon         *string `json:"icon"`
	SystemPrompt *string `json:"systemPrompt"`
}

func (s *ChatService) UpdateAssistant(id string, u AssistantUpdate) (*model.Assistant, error) {
	a, err := s.GetAssistant(id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
		}
		a.Name = *u.Name
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.Icon != nil {
		a.Icon = *u.Icon
	}
	if u.SystemPrompt != nil {
		a.SystemPrompt = *u.SystemPrompt
	}
	if err := s.db.Save(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAssistant 删除助手及其全部话题和消息
func (s *ChatService) DeleteAssistant(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Assistant{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("assistant %s: %w", id, ErrNotFound)
		}
		topics := tx.Model(&model.Topic{}).Select("id").Where("assistant_id = ?", id)
		if err := tx.Where("topic_id IN (?)", topics).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("assistant_id = ?", id).Delete(&model.Topic{}).Error
	})
}

// ===== 话题 =====

func (s *ChatService) AddTopic(title, assistantID string) (*model.Topic, error) {
	if _, err := s.GetAssistant(assistantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTopicTitle
	}
	t := model.Topic{
		ID:          uuid.NewString(),
		Title:       title,
		AssistantID: assistantID,
		Messages:    []model.Message{},
	}
	if err := s.db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTopics 按最近更新排序，assistantID 为空时返回全部
func (s *ChatService) ListTopics(assistantID string) ([]model.Topic, error) {
	q := s.db.Order("updated_at DESC")
	if assistantID != "" {
		q = q.Where("assistant_id = ?", assistantID)
	}
	var topics []model.Topic
	err := q.Find(&topics).Error
	return topics, err
}

// GetTopic 返回话题及按顺序排列的消息
func (s *ChatService) GetTopic(id string) (*model.Topic, error) {
	var t model.Topic
	err := s.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "topic", id)
	}
	return &t, nil
}

func (s *ChatService) UpdateTopicTitle(id, title string) error {
	res := s.db.Model(&model.Topic{}).Where("id = ?", id).Updates(map[string]any{
		"title":      title,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ChatService) DeleteTopic(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Topic{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("topic %s: %w", id, ErrNotFound)
		}
		return tx.Where("topic_id = ?", id).Delete(&model.Message{}).Error
	})
}

// ===== 消息 =====

// MessageMeta 可选的消息附加信息
type MessageMeta struct {
	Model  string
	Tokens string
}

// AppendMessage 追加一条消息并推进话题的 updatedAt
//
// 话题仍为"新话题"且这是第一条用户消息时，用消息内容的前 20 个字符作为标题。
func (s *ChatService) AppendMessage(topicID string, role model.Role, content string, meta MessageMeta) (*model.Message, error) {
	var msg model.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var t model.Topic
		if err := tx.First(&t, "id = ?", topicID).Error; err != nil {
			return notFound(err, "topic", topicID)
		}

		var last struct {
			MaxSeq *int
			Count  int64
		}
		if err := tx.Model(&model.Message{}).
			Select("MAX(seq) AS max_seq, COUNT(*) AS count").
			Where("topic_id = ?", topicID).
			Scan(&last).Error; err != nil {
			return err
		}
		seq := 1
		if last.MaxSeq != nil {
			seq = *last.MaxSeq + 1
		}

		now := time.Now()
		msg = model.Message{
			ID:        uuid.NewString(),
			TopicID:   topicID,
			Seq:       seq,
			Role:      role,
			Content:   content,
			Model:     meta.Model,
			Tokens:    meta.Tokens,
			Timestamp: now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		updates := map[string]any{"updated_at": now}
		if t.Title == model.DefaultTopicTitle && role == model.RoleUser && last.Count == 0 {
			updates["title"] = TitleFromContent(content)
		}
		return tx.Model(&model.Topic{}).Where("id = ?", topicID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// TitleFromContent 取前 20 个字符，超出部分以 ... 表示
func TitleFromContent(content string) string {
	if utf8.RuneCountInString(content) <= topicTitleRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:topicTitleRunes]) + "..."
}

// ClearMessages 清空话题内的消息，话题本身保留
func (s *ChatService) ClearMessages(topicID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var t model.Topic
		if err := tx.First(&t, "id = ?", topicID).Error; err != nil {
			return notFound(err, "topic", topicID)
		}
		if err := tx.Where("topic_id = ?", topicID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Model(&t).Update("updated_at", time.Now()).Error
	})
}

// SendResult 一轮对话的结果，Reply 在请求失败时也存在（内容为失败说明）
type SendResult struct {
	User    *model.Message `json:"user"`
	Reply   *model.Message `json:"reply"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// SendMessage 追加用户消息，调用默认模型，并把回复（或失败说明）作为助手消息追加
//
// onStream 非 nil 时使用流式请求。
func (s *ChatService) SendMessage(ctx context.Context, topicID, content string, onStream func(string)) (*SendResult, error) {
	topic, err := s.GetTopic(topicID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.AppendMessage(topicID, model.RoleUser, content, MessageMeta{})
	if err != nil {
		return nil, err
	}

	result := &SendResult{User: userMsg}
	provider, modelName, err := s.providers.ResolveDefault()
	if err != nil {
		return s.replyFailure(result, topicID, modelName, err.Error())
	}

	messages := make([]ChatMessage, 0, len(topic.Messages)+2)
	if a, err := s.GetAssistant(topic.AssistantID); err == nil && a.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: string(model.RoleSystem), Content: a.SystemPrompt})
	}
	for _, m := range topic.Messages {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ChatMessage{Role: string(model.RoleUser), Content: content})

	res := s.llm.ChatCompletion(ctx, ChatCompletionOptions{
		APIURL:   provider.APIURL,
		APIKey:   provider.APIKey,
		Model:    modelName,
		Messages: messages,
		Stream:   onStream != nil,
		OnStream: onStream,
	})
	if !res.Success {
		slog.Warn("chat completion failed", "topic", topicID, "provider", provider.ID, "model", modelName, "err", res.Error)
		return s.replyFailure(result, topicID, modelName, res.Error)
	}

	meta := MessageMeta{Model: modelName}
	if res.Usage != nil {
		meta.Tokens = strconv.Itoa(res.Usage.TotalTokens)
	}
	reply, err := s.AppendMessage(topicID, model.RoleAssistant, res.Content, meta)
	if err != nil {
		return nil, err
	}
	result.Reply = reply
	result.Success = true
	return result, nil
}

func (s *ChatService) replyFailure(result *SendResult, topicID, modelName, reason string) (*SendResult, error) {
	reply, err := s.AppendMessage(topicID, model.RoleAssistant, "请求失败: "+reason, MessageMeta{Model: modelName})
	if err != nil {
		return nil, err
	}
	result.Reply = reply
	result.Error = reason
	return result, nil
}

// Counts 聊天数据统计
func (s *ChatService) Counts() (assistants, topics, messages int64, err error) {
	if err = s.db.Model(&model.Assistant{}).Count(&assistants).Error; err != nil {
		return
	}
	if err = s.db.Model(&model.Topic{}).Count(&topics).Error; err != nil {
		return
	}
	err = s.db.Model(&model.Message{}).Count(&messages).Error
	return
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}
