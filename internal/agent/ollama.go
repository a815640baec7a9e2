package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/logger"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/tracing"
)

// OllamaChatModel 通过Ollama的OpenAI兼容接口调用本地模型
// 实现 eino 的 ToolCallingChatModel 接口, 供提取/摘要/打分组件复用
type OllamaChatModel struct {
	BaseURL string
	Model   string
	Client  *http.Client

	tools []*schema.ToolInfo
}

// openAIRequest OpenAI兼容的请求体
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float32         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse OpenAI兼容的响应体(非流式)
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOllamaChatModel 创建Ollama模型客户端
func NewOllamaChatModel(baseURL, modelName string, timeout time.Duration) (*OllamaChatModel, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("Ollama BaseURL 不能为空")
	}
	if modelName == "" {
		return nil, fmt.Errorf("Ollama 模型名不能为空")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaChatModel{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   modelName,
		Client:  &http.Client{Timeout: timeout},
	}, nil
}

// Generate 发送消息并获取模型回复
func (m *OllamaChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	reqBody := openAIRequest{
		Model:    m.Model,
		Messages: make([]openAIMessage, 0, len(input)),
		Stream:   false,
	}
	for _, msg := range input {
		reqBody.Messages = append(reqBody.Messages, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := m.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("调用Ollama失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Ollama响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error().
			Int("status_code", resp.StatusCode).
			Str("model", m.Model).
			Msg("Ollama 返回非200状态码")
		return nil, fmt.Errorf("Ollama API 错误, 状态码 %d: %s", resp.StatusCode, string(body))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("解析Ollama响应失败: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("Ollama API 错误: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("Ollama 响应中没有choices")
	}

	choice := apiResp.Choices[0]
	logger.Debug().
		Str("model", m.Model).
		Str("finish_reason", choice.FinishReason).
		Int("total_tokens", apiResp.Usage.TotalTokens).
		Str("content_preview", tracing.SafePrompt(choice.Message.Content)).
		Msg("Ollama 调用完成")

	return &schema.Message{
		Role:    schema.RoleType(choice.Message.Role),
		Content: choice.Message.Content,
	}, nil
}

// Stream 流式调用, 当前流水线只用非流式接口
func (m *OllamaChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OllamaChatModel 暂不支持流式调用")
}

// WithTools 返回绑定了工具信息的新实例
func (m *OllamaChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	nm := *m
	nm.tools = tools
	return &nm, nil
}

// BindTools 兼容旧接口
func (m *OllamaChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.tools = tools
	return nil
}

// TestConnection 启动时探活: 让模型回显一个固定单词
func (m *OllamaChatModel) TestConnection(ctx context.Context) error {
	msg, err := m.Generate(ctx, []*schema.Message{
		schema.UserMessage("请只回复一个单词: pong"),
	})
	if err != nil {
		return fmt.Errorf("Ollama 连接测试失败: %w", err)
	}
	if msg == nil || msg.Content == "" {
		return fmt.Errorf("Ollama 连接测试返回空响应")
	}
	logger.Info().Str("model", m.Model).Msg("Ollama 连接测试通过")
	return nil
}
