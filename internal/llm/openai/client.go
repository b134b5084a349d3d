package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

const (
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey     string
	BaseURL    string
	Models     llm.Models
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 通过 go-openai 调用 OpenAI 兼容的大模型接口。
type Client struct {
	api    *goopenai.Client
	models llm.Models
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clientCfg.HTTPClient = httpClient

	return &Client{
		api:    goopenai.NewClientWithConfig(clientCfg),
		models: cfg.Models.WithDefaults(defaultModelName, defaultModelName, "gpt-4o"),
	}, nil
}

// GenerateText 发送单轮对话并返回模型文本。
func (c *Client) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.models.Resolve(req.ModelClass, defaultModelName),
		Messages: []goopenai.ChatCompletionMessage{{
			Role:    goopenai.ChatMessageRoleUser,
			Content: req.Context,
		}},
		Stop:        req.Stop,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "请求 OpenAI 失败")
	}
	if len(resp.Choices) == 0 {
		return "", xerrors.New(xerrors.CodeModelFailure, "OpenAI 响应中没有有效的 choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
