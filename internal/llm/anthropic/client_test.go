package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

func TestGenerateTextConcatenatesTextBlocks(t *testing.T) {
	var body map[string]any
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		apiKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "SO"}, {"type": "text", "text": "L"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Models: llm.Models{Small: "claude-test"}, HTTPClient: srv.Client()})
	require.NoError(t, err)

	text, err := client.GenerateText(context.Background(), plugin.TextRequest{Context: "symbol?", ModelClass: plugin.ModelSmall, Stop: []string{"\n"}})
	require.NoError(t, err)
	assert.Equal(t, "SOL", text)
	assert.Equal(t, "k", apiKey)
	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, defaultMaxTokens, body["max_tokens"])
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
