package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"go-knowledge/internal/model"
)

func TestSeedAssistantsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	if err := env.chat.SeedAssistants(); err != nil {
		t.Fatalf("seed again: %v", err)
	}
	items, err := env.chat.ListAssistants()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 6 {
		t.Fatalf("assistants = %d, want 6", len(items))
	}
	def, err := env.chat.GetAssistant("1")
	if err != nil || !def.IsDefault || def.Name != "默认助手" {
		t.Fatalf("default assistant = %+v, %v", def, err)
	}
}

func TestAssistantCRUD(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.chat.AddAssistant(model.Assistant{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("add without name err = %v", err)
	}
	a, err := env.chat.AddAssistant(model.Assistant{Name: "翻译", SystemPrompt: "translate"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.ID == "" || a.IsDefault {
		t.Fatalf("added = %+v", a)
	}

	prompt := "translate to English"
	updated, err := env.chat.UpdateAssistant(a.ID, AssistantUpdate{SystemPrompt: &prompt})
	if err != nil || updated.SystemPrompt != prompt || updated.Name != "翻译" {
		t.Fatalf("update = %+v, %v", updated, err)
	}

	topic, err := env.chat.AddTopic("", a.ID)
	if err != nil {
		t.Fatalf("add topic: %v", err)
	}
	if _, err := env.chat.AppendMessage(topic.ID, model.RoleUser, "hello", MessageMeta{}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := env.chat.DeleteAssistant(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.chat.GetTopic(topic.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("topic survived assistant delete: %v", err)
	}
	_, _, messages, _ := env.chat.Counts()
	if messages != 0 {
		t.Fatalf("messages survived assistant delete: %d", messages)
	}
	if err := env.chat.DeleteAssistant(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestAddTopicRequiresAssistant(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.chat.AddTopic("x", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	topic, err := env.chat.AddTopic("", "1")
	if err != nil || topic.Title != model.DefaultTopicTitle {
		t.Fatalf("topic = %+v, %v", topic, err)
	}
}

func TestAppendMessageRetitlesNewTopic(t *testing.T) {
	env := newTestEnv(t)
	topic, _ := env.chat.AddTopic(model.DefaultTopicTitle, "1")

	long := "请帮我写一份关于季度产品规划的详细文档大纲谢谢"
	if _, err := env.chat.AppendMessage(topic.ID, model.RoleUser, long, MessageMeta{}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := env.chat.AppendMessage(topic.ID, model.RoleAssistant, "好的", MessageMeta{Model: "m"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := env.chat.AppendMessage(topic.ID, model.RoleUser, "second", MessageMeta{}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := env.chat.GetTopic(topic.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := string([]rune(long)[:20]) + "..."
	if got.Title != want {
		t.Fatalf("title = %q, want %q", got.Title, want)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d", len(got.Messages))
	}
	for i, role := range []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser} {
		if got.Messages[i].Role != role || got.Messages[i].Seq != i+1 {
			t.Fatalf("message %d = %+v", i, got.Messages[i])
		}
	}
	if got.UpdatedAt.Before(got.Messages[2].Timestamp) {
		t.Fatalf("updatedAt %v behind last message %v", got.UpdatedAt, got.Messages[2].Timestamp)
	}
}

func TestRetitleOnlyForFirstUserMessage(t *testing.T) {
	env := newTestEnv(t)

	custom, _ := env.chat.AddTopic("我的话题", "1")
	env.chat.AppendMessage(custom.ID, model.RoleUser, "hi", MessageMeta{})
	if got, _ := env.chat.GetTopic(custom.ID); got.Title != "我的话题" {
		t.Fatalf("custom title replaced: %q", got.Title)
	}

	first, _ := env.chat.AddTopic("", "1")
	env.chat.AppendMessage(first.ID, model.RoleAssistant, "welcome", MessageMeta{})
	env.chat.AppendMessage(first.ID, model.RoleUser, "hi", MessageMeta{})
	if got, _ := env.chat.GetTopic(first.ID); got.Title != model.DefaultTopicTitle {
		t.Fatalf("title changed by non-first message: %q", got.Title)
	}

	short, _ := env.chat.AddTopic("", "1")
	env.chat.AppendMessage(short.ID, model.RoleUser, "短问题", MessageMeta{})
	if got, _ := env.chat.GetTopic(short.ID); got.Title != "短问题" {
		t.Fatalf("short title = %q", got.Title)
	}
}

func TestTitleFromContent(t *testing.T) {
	if got := TitleFromContent(strings.Repeat("a", 20)); got != strings.Repeat("a", 20) {
		t.Fatalf("20 chars = %q", got)
	}
	if got := TitleFromContent(strings.Repeat("字", 21)); got != strings.Repeat("字", 20)+"..." {
		t.Fatalf("21 chars = %q", got)
	}
}

func TestClearMessagesAndDeleteTopic(t *testing.T) {
	env := newTestEnv(t)
	topic, _ := env.chat.AddTopic("t", "1")
	env.chat.AppendMessage(topic.ID, model.RoleUser, "a", MessageMeta{})
	env.chat.AppendMessage(topic.ID, model.RoleUser, "b", MessageMeta{})

	if err := env.chat.ClearMessages(topic.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := env.chat.GetTopic(topic.ID)
	if len(got.Messages) != 0 {
		t.Fatalf("messages after clear = %d", len(got.Messages))
	}
	msg, err := env.chat.AppendMessage(topic.ID, model.RoleUser, "c", MessageMeta{})
	if err != nil || msg.Seq != 1 {
		t.Fatalf("append after clear = %+v, %v", msg, err)
	}

	if err := env.chat.UpdateTopicTitle(topic.ID, "renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	topics, _ := env.chat.ListTopics("1")
	if len(topics) != 1 || topics[0].Title != "renamed" {
		t.Fatalf("topics = %+v", topics)
	}

	if err := env.chat.DeleteTopic(topic.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.chat.DeleteTopic(topic.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if err := env.chat.UpdateTopicTitle(topic.ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename deleted topic err = %v", err)
	}
}

func configureProvider(t *testing.T, env *testEnv, apiURL string) {
	t.Helper()
	err := env.providers.SaveProvider(model.ProviderConfig{
		ID: "local", Name: "Local", Type: model.ProviderCustom,
		APIKey: "sk-local", APIURL: apiURL, Enabled: true, Models: []string{"m1"},
	}, true)
	if err != nil {
		t.Fatalf("save provider: %v", err)
	}
	if err := env.providers.SetDefault("local", "m1"); err != nil {
		t.Fatalf("set default: %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &got)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"你好！"}}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`)
	}))
	defer srv.Close()
	configureProvider(t, env, srv.URL)

	topic, _ := env.chat.AddTopic("", "1")
	res, err := env.chat.SendMessage(context.Background(), topic.ID, "你好", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Success || res.Reply.Content != "你好！" || res.Reply.Tokens != "8" || res.Reply.Model != "m1" {
		t.Fatalf("result = %+v reply = %+v", res, res.Reply)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "你好" {
		t.Fatalf("request messages = %+v", got.Messages)
	}
	if got.Model != "m1" {
		t.Fatalf("request model = %q", got.Model)
	}

	tp, _ := env.chat.GetTopic(topic.ID)
	if len(tp.Messages) != 2 || tp.Title != "你好" {
		t.Fatalf("topic after send = %+v", tp)
	}
}

func TestSendMessageStreaming(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()
	configureProvider(t, env, srv.URL)

	topic, _ := env.chat.AddTopic("", "2")
	var chunks []string
	res, err := env.chat.SendMessage(context.Background(), topic.ID, "hi", func(c string) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Success || res.Reply.Content != "Hello" || len(chunks) != 2 {
		t.Fatalf("result = %+v chunks = %q", res, chunks)
	}
}

func TestSendMessageFailureKeepsUserTurn(t *testing.T) {
	env := newTestEnv(t)
	topic, _ := env.chat.AddTopic("", "1")

	// 未配置默认模型
	res, err := env.chat.SendMessage(context.Background(), topic.ID, "hello", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Success || res.Reply == nil || res.Reply.Content != "请求失败: "+ErrNoDefaultModel.Error() {
		t.Fatalf("result = %+v", res)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()
	configureProvider(t, env, srv.URL)

	res, err = env.chat.SendMessage(context.Background(), topic.ID, "again", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Success || res.Error != ErrMsgUnauthorized || res.Reply.Role != model.RoleAssistant {
		t.Fatalf("result = %+v", res)
	}

	tp, _ := env.chat.GetTopic(topic.ID)
	if len(tp.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(tp.Messages))
	}
	if tp.Messages[2].Content != "again" || tp.Messages[3].Content != "请求失败: "+ErrMsgUnauthorized {
		t.Fatalf("messages = %+v", tp.Messages)
	}
}

func TestSendMessageDisabledProvider(t *testing.T) {
	env := newTestEnv(t)
	configureProvider(t, env, "https://api.example.com/v1")
	if err := env.providers.SetProviderEnabled("local", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	topic, _ := env.chat.AddTopic("", "1")
	res, err := env.chat.SendMessage(context.Background(), topic.ID, "hi", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Success || res.Error != ErrProviderDisabled.Error() {
		t.Fatalf("result = %+v", res)
	}
}
