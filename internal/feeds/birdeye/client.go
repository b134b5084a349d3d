// Package birdeye fetches token prices from the Birdeye public API.
package birdeye

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	xerrors "Merem-Agent/internal/errors"
)

const (
	DefaultBaseURL = "https://public-api.birdeye.so"
	defaultTimeout = 10 * time.Second
)

// Config describes the Birdeye endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Price is the data block of /public/price.
type Price struct {
	Value          decimal.Decimal `json:"value"`
	UpdateUnixTime int64           `json:"updateUnixTime"`
	PriceChange24h decimal.Decimal `json:"priceChange24h"`
	Volume24h      decimal.Decimal `json:"volume24h"`
}

type priceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *Price `json:"data"`
}

// Client is a thin Birdeye REST client. It never retries.
type Client struct {
	http *resty.Client
}

// NewClient builds a client. An empty API key is accepted; Birdeye will reject the call.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("X-API-KEY", cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &Client{http: http}
}

// TokenPrice returns the current price of the token mint address.
func (c *Client) TokenPrice(ctx context.Context, address string) (*Price, error) {
	if strings.TrimSpace(address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "token address is empty")
	}
	var out priceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&out).
		Get("/public/price")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "birdeye request failed")
	}
	if resp.IsError() {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure,
			fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 256)),
			"birdeye request failed")
	}
	if out.Data == nil {
		msg := out.Message
		if msg == "" {
			msg = "response carried no price data"
		}
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, errors.New(msg), "birdeye request failed")
	}
	return out.Data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
