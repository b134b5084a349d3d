// Package newsapi searches articles through the NewsAPI "everything" endpoint.
package newsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	xerrors "Merem-Agent/internal/errors"
)

const (
	DefaultBaseURL = "https://newsapi.org"
	defaultTimeout = 10 * time.Second
)

// Config describes the NewsAPI endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Article is one search hit.
type Article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type everythingResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// Client is a thin NewsAPI REST client. It never retries.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient builds a client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		apiKey: cfg.APIKey,
	}
}

// Everything returns articles matching query, in the order NewsAPI ranks them.
func (c *Client) Everything(ctx context.Context, query string) ([]Article, error) {
	var out everythingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("apiKey", c.apiKey).
		SetResult(&out).
		Get("/v2/everything")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "newsapi request failed")
	}
	if resp.IsError() {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure,
			fmt.Errorf("status %d", resp.StatusCode()), "newsapi request failed")
	}
	if out.Status != "" && out.Status != "ok" {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure,
			errors.New(out.Code+": "+out.Message), "newsapi request failed")
	}
	return out.Articles, nil
}
