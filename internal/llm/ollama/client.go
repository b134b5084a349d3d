package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

const (
	defaultHost    = "http://localhost:11434"
	defaultModel   = "llama3.2"
	defaultTimeout = 60 * time.Second
)

// Config 描述本地 Ollama 服务的连接参数。
type Config struct {
	Host       string
	Models     llm.Models
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 通过 ollama/api 调用本地模型。
type Client struct {
	api    *api.Client
	models llm.Models
}

// NewClient 创建 Ollama 客户端。
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("无效的 Ollama 地址 %q: %w", host, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		api:    api.NewClient(u, httpClient),
		models: cfg.Models.WithDefaults(defaultModel, defaultModel, defaultModel),
	}, nil
}

// GenerateText 调用 /api/generate 并汇总流式输出。
func (c *Client) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	options := map[string]any{}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var text strings.Builder
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:   c.models.Resolve(req.ModelClass, defaultModel),
		Prompt:  req.Context,
		Options: options,
	}, func(gr api.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "请求 Ollama 失败")
	}
	return llm.TrimStop(text.String(), req.Stop), nil
}
