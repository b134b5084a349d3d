package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEverythingPassesQueryAndKey(t *testing.T) {
	var q, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		q = r.URL.Query().Get("q")
		key = r.URL.Query().Get("apiKey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"title":"A","url":"https://a","content":"alpha"},
			{"title":"B","url":"https://b","content":"beta","source":{"name":"Wire"}}
		]}`))
	}))
	defer srv.Close()

	articles, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}).Everything(context.Background(), "solana etf")
	require.NoError(t, err)
	assert.Equal(t, "solana etf", q)
	assert.Equal(t, "k", key)
	require.Len(t, articles, 2)
	assert.Equal(t, "B", articles[1].Title)
	assert.Equal(t, "Wire", articles[1].Source.Name)
}

func TestEverythingErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Everything(context.Background(), "x")
	require.Error(t, err)
}

func TestEverythingErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"slow down"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Everything(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rateLimited")
}
