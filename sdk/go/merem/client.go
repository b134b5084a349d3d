// Package merem is a Go client for the Merem agent REST API.
package merem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout bounds requests of clients created without an http.Client.
// Synchronous message handling includes model calls, so it is generous.
const DefaultHTTPTimeout = 60 * time.Second

// Client wraps the HTTP interactions with the agent API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Message is a user message submitted to the agent.
type Message struct {
	UserID   string         `json:"user_id"`
	RoomID   string         `json:"room_id"`
	Text     string         `json:"text,omitempty"`
	Action   string         `json:"action,omitempty"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Content is the payload of a memory or a delivered response.
type Content struct {
	Text      string         `json:"text"`
	Action    string         `json:"action,omitempty"`
	Source    string         `json:"source,omitempty"`
	InReplyTo string         `json:"in_reply_to,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Memory is a stored message.
type Memory struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	AgentID   string  `json:"agent_id"`
	RoomID    string  `json:"room_id"`
	Content   Content `json:"content"`
	CreatedAt int64   `json:"created_at"`
}

// Result describes how the agent handled a message.
type Result struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Responses []Content `json:"responses"`
}

// Action describes a registered action.
type Action struct {
	Name        string   `json:"name"`
	Similes     []string `json:"similes,omitempty"`
	Description string   `json:"description"`
}

// ChainSnapshot is the latest observed state of a configured chain.
type ChainSnapshot struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	ChainID string `json:"chain_id"`
	Height  uint64 `json:"height"`
	Symbol  string `json:"symbol"`
	Notes   string `json:"notes,omitempty"`
}

// Chains lists chain snapshots and the chains that could not be reached.
type Chains struct {
	Chains []ChainSnapshot   `json:"chains"`
	Errors map[string]string `json:"errors,omitempty"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("merem api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("merem api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client. When httpClient is nil a default client with
// DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken sets the bearer token sent with /api requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SendMessage submits msg and waits for the agent to handle it.
func (c *Client) SendMessage(ctx context.Context, msg Message) (Result, error) {
	var result Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", nil, msg, &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// EnqueueMessage queues msg for asynchronous handling and returns the envelope id.
func (c *Client) EnqueueMessage(ctx context.Context, msg Message) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages/async", nil, msg, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListMemories returns up to limit messages of a room, newest first. A
// non-positive limit uses the server default.
func (c *Client) ListMemories(ctx context.Context, roomID string, limit int) ([]Memory, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var items []Memory
	endpoint := "/api/v1/rooms/" + url.PathEscape(roomID) + "/memories"
	if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListActions returns the registered actions.
func (c *Client) ListActions(ctx context.Context) ([]Action, error) {
	var actions []Action
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, nil, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// Chains returns the configured chain snapshots.
func (c *Client) Chains(ctx context.Context) (Chains, error) {
	var out Chains
	if err := c.do(ctx, http.MethodGet, "/api/v1/chains", nil, nil, &out); err != nil {
		return Chains{}, err
	}
	return out, nil
}

// Health reports whether the server answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint), RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
