package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Merem-Agent/internal/errors"
)

func TestTokenPriceSendsHeadersAndDecodes(t *testing.T) {
	var apiKey, accept, address, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-KEY")
		accept = r.Header.Get("Accept")
		address = r.URL.Query().Get("address")
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"value":142.3156,"updateUnixTime":1700000000,"priceChange24h":-2.5,"volume24h":123456789.12}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: srv.URL})
	price, err := client.TokenPrice(context.Background(), "So11111111111111111111111111111111111111112")
	require.NoError(t, err)

	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "application/json", accept)
	assert.Equal(t, "/public/price", path)
	assert.Equal(t, "So11111111111111111111111111111111111111112", address)
	assert.Equal(t, "142.3156", price.Value.String())
	assert.Equal(t, "-2.5", price.PriceChange24h.String())
	assert.Equal(t, "123456789.12", price.Volume24h.String())
	assert.EqualValues(t, 1700000000, price.UpdateUnixTime)
}

func TestTokenPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).TokenPrice(context.Background(), "addr")
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeUpstreamFailure, xerrors.CodeOf(err))
}

func TestTokenPriceMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"token not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).TokenPrice(context.Background(), "addr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token not found")
}

func TestTokenPriceRejectsEmptyAddress(t *testing.T) {
	_, err := NewClient(Config{}).TokenPrice(context.Background(), " ")
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}
