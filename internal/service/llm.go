package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	DefaultTemperature  = 0.7
	chatCompletionsPath = "/chat/completions"
)

// 固定的错误提示
const (
	ErrMsgUnauthorized   = "API 密钥无效或已过期"
	ErrMsgForbidden      = "无权访问该模型或 API"
	ErrMsgNotFound       = "模型不存在或 API 地址错误"
	ErrMsgRateLimited    = "请求过于频繁，请稍后再试"
	ErrMsgServerError    = "服务器内部错误"
	ErrMsgRequestFailed  = "请求失败"
	ErrMsgNetwork        = "网络连接失败，请检查 API 地址是否正确"
	ErrMsgInvalidPayload = "响应解析失败"
	ErrMsgUnknown        = "未知错误"
)

type LLMService struct {
	client *http.Client
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionOptions struct {
	APIURL      string
	APIKey      string
	Model       string
	Messages    []ChatMessage
	Temperature *float64 // nil 时使用 0.7
	MaxTokens   int
	Stream      bool
	// OnStream 每收到一段增量内容调用一次
	OnStream func(chunk string)
}

type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type ChatCompletionResult struct {
	Success bool        `json:"success"`
	Content string      `json:"content,omitempty"`
	Error   string      `json:"error,omitempty"`
	Usage   *TokenUsage `json:"usage,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *apiUsage) toTokenUsage() *TokenUsage {
	if u == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type ModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func NewLLMService(client *http.Client) *LLMService {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &LLMService{client: client}
}

// NormalizeAPIURL 标准化 API 地址
//
// 以 # 结尾表示强制使用 /v1；以 / 结尾表示不追加版本段，只去掉这一个斜杠。
func NormalizeAPIURL(apiURL string) string {
	base := strings.TrimSpace(apiURL)
	switch {
	case strings.HasSuffix(base, "#"):
		base = strings.TrimSuffix(base, "#")
		if !strings.HasSuffix(base, "/v1") {
			base = strings.TrimSuffix(base, "/") + "/v1"
		}
	case strings.HasSuffix(base, "/"):
		base = strings.TrimSuffix(base, "/")
	}
	return base
}

// BuildChatEndpoint 追加 /chat/completions（已存在则不变）
func BuildChatEndpoint(base string) string {
	if strings.HasSuffix(base, chatCompletionsPath) {
		return base
	}
	return base + chatCompletionsPath
}

func PrepareEndpoint(apiURL string) string {
	return BuildChatEndpoint(NormalizeAPIURL(apiURL))
}

// StatusMessage 状态码对应的固定提示，未知状态码返回空
func StatusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return ErrMsgUnauthorized
	case http.StatusForbidden:
		return ErrMsgForbidden
	case http.StatusNotFound:
		return ErrMsgNotFound
	case http.StatusTooManyRequests:
		return ErrMsgRateLimited
	case http.StatusInternalServerError:
		return ErrMsgServerError
	}
	return ""
}

// extractErrorMessage 从错误响应体中取 error / error.message / message
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return payload.Message
}

func apiErrorMessage(status int, body []byte) string {
	if msg := StatusMessage(status); msg != "" {
		return msg
	}
	if msg := extractErrorMessage(body); msg != "" {
		return msg
	}
	return ErrMsgRequestFailed
}

func transportErrorMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && !errors.Is(err, context.Canceled) {
		return ErrMsgNetwork
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return ErrMsgUnknown
}

func failed(msg string) ChatCompletionResult {
	return ChatCompletionResult{Success: false, Error: msg}
}

func (s *LLMService) post(ctx context.Context, apiURL, apiKey string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, PrepareEndpoint(apiURL), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return s.client.Do(req)
}

// ChatCompletion 调用聊天补全接口，所有失败都体现在结果里
func (s *LLMService) ChatCompletion(ctx context.Context, opts ChatCompletionOptions) ChatCompletionResult {
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	resp, err := s.post(ctx, opts.APIURL, opts.APIKey, chatRequest{
		Model:       opts.Model,
		Messages:    opts.Messages,
		Temperature: temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      opts.Stream,
	})
	if err != nil {
		return failed(transportErrorMessage(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return failed(apiErrorMessage(resp.StatusCode, body))
	}

	if opts.Stream {
		return collectStream(resp.Body, opts.OnStream)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(transportErrorMessage(err))
	}
	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return failed(ErrMsgInvalidPayload)
	}
	content := ""
	if len(chatResp.Choices) > 0 {
		content = chatResp.Choices[0].Message.Content
	}
	return ChatCompletionResult{Success: true, Content: content, Usage: chatResp.Usage.toTokenUsage()}
}

func collectStream(r io.Reader, onStream func(string)) ChatCompletionResult {
	var full strings.Builder
	for delta, err := range StreamDeltas(r) {
		if err != nil {
			return failed(transportErrorMessage(err))
		}
		full.WriteString(delta)
		if onStream != nil {
			onStream(delta)
		}
	}
	return ChatCompletionResult{Success: true, Content: full.String()}
}

// StreamDeltas 逐段产出 SSE 流中的 choices[0].delta.content
//
// 只处理 "data: " 行，跳过 [DONE] 和无法解析的块。读取出错时产出一次错误后结束。
// 调用方停止迭代即可放弃剩余的流。
func StreamDeltas(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if content := parseSSELine(line); content != "" {
				if !yield(content, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

func parseSSELine(line string) string {
	line = strings.TrimRight(line, "\r\n")
	data, ok := strings.CutPrefix(line, "data: ")
	if !ok || data == "[DONE]" {
		return ""
	}
	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return ""
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

// APIKeyTestResult API 密钥检测结果
type APIKeyTestResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Model   string      `json:"model,omitempty"`
	Usage   *TokenUsage `json:"usage,omitempty"`
}

// TestAPIKey 发送一条极短的请求验证密钥与模型
func (s *LLMService) TestAPIKey(ctx context.Context, apiURL, apiKey, model string) APIKeyTestResult {
	resp, err := s.post(ctx, apiURL, apiKey, chatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "user", Content: "Hello, this is a test message to verify the API key."},
		},
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		return APIKeyTestResult{Error: transportErrorMessage(err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return APIKeyTestResult{Error: apiErrorMessage(resp.StatusCode, body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return APIKeyTestResult{Error: ErrMsgInvalidPayload}
	}
	return APIKeyTestResult{Success: true, Model: chatResp.Model, Usage: chatResp.Usage.toTokenUsage()}
}

// GetModels 获取可用模型列表
func (s *LLMService) GetModels(ctx context.Context, apiURL, apiKey string) ([]string, error) {
	base := strings.TrimSuffix(NormalizeAPIURL(apiURL), chatCompletionsPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgNetwork, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误 (%d): %s", resp.StatusCode, apiErrorMessage(resp.StatusCode, body))
	}

	var modelsResp ModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	models := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
