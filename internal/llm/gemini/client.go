package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

const defaultModel = "gemini-1.5-flash"

// Config 描述 Gemini 的连接参数。
type Config struct {
	APIKey string
	Models llm.Models
}

// Client 通过 generative-ai-go 调用 Gemini 模型。
type Client struct {
	api    *genai.Client
	models llm.Models
}

// NewClient 创建 Gemini 客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Gemini API Key")
	}
	api, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("初始化 Gemini 客户端失败: %w", err)
	}
	return &Client{
		api:    api,
		models: cfg.Models.WithDefaults(defaultModel, defaultModel, "gemini-1.5-pro"),
	}, nil
}

// GenerateText 调用 GenerateContent 并拼接文本片段。
func (c *Client) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	model := c.api.GenerativeModel(c.models.Resolve(req.ModelClass, defaultModel))
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Context))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "请求 Gemini 失败")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", xerrors.New(xerrors.CodeModelFailure, "Gemini 响应为空")
	}
	return joinText(resp.Candidates[0].Content.Parts), nil
}

// Close 释放底层连接。
func (c *Client) Close() error {
	return c.api.Close()
}

func joinText(parts []genai.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
