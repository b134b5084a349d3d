package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

// Config 描述 Anthropic Messages API 的连接参数。
type Config struct {
	APIKey     string
	BaseURL    string
	Models     llm.Models
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 通过 anthropic-sdk-go 调用 Claude 模型。
type Client struct {
	api    sdk.Client
	models llm.Models
}

// NewClient 创建 Anthropic 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Anthropic API Key")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{
		api:    sdk.NewClient(opts...),
		models: cfg.Models.WithDefaults(defaultModel, defaultModel, "claude-3-7-sonnet-latest"),
	}, nil
}

// GenerateText 发送单轮消息并拼接返回的文本块。
func (c *Client) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.models.Resolve(req.ModelClass, defaultModel)),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Context)),
		},
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "请求 Anthropic 失败")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
