package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"action":"balance"}`, `{"action":"balance"}`},
		{"```json\n{\"action\":\"balance\"}\n```", `{"action":"balance"}`},
		{"Sure! `{\"action\":\"deploy\"}` done", `{"action":"deploy"}`},
		{`text {"a":{"b":1}} trailing } noise`, `{"a":{"b":1}} trailing }`},
		{"I can't help with that", ""},
		{"} reversed {", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanJSON(tc.in), "input %q", tc.in)
	}
}

func TestParseJSONObject(t *testing.T) {
	var out struct {
		Action string `json:"action"`
		Params struct {
			Recipient string  `json:"recipient"`
			Amount    float64 `json:"amount"`
		} `json:"params"`
	}
	raw := "```json\n{\"action\":\"transfer\",\"params\":{\"recipient\":\"abc\",\"amount\":1.5}}\n```"
	require.NoError(t, ParseJSONObject(raw, &out))
	assert.Equal(t, "transfer", out.Action)
	assert.Equal(t, "abc", out.Params.Recipient)
	assert.InDelta(t, 1.5, out.Params.Amount, 1e-9)

	assert.ErrorIs(t, ParseJSONObject("no json here", &out), ErrNoJSONObject)
	assert.Error(t, ParseJSONObject("{not: valid}", &out))
}

func TestParseJSONArray(t *testing.T) {
	var facts []map[string]any
	require.NoError(t, ParseJSONArray("```json\n[{\"claim\":\"x\"}]\n```", &facts))
	assert.Len(t, facts, 1)
	assert.Error(t, ParseJSONArray("nothing", &facts))
}

func TestCleanToken(t *testing.T) {
	assert.Equal(t, "SOL", CleanToken("sol"))
	assert.Equal(t, "BONK", CleanToken("  `$bonk.` is the token"))
	assert.Equal(t, "JTO", CleanToken("\"JTO\"\n"))
	assert.Equal(t, "", CleanToken("   "))
}

func TestActionSpecMatches(t *testing.T) {
	spec := ActionSpec{Name: "CurrentNews", Similes: []string{"NEWS", "GET_NEWS"}}
	assert.True(t, spec.Matches("currentnews"))
	assert.True(t, spec.Matches("get_news"))
	assert.False(t, spec.Matches("SOLANA"))
}
