package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticProviderYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- title: Lamports
  content: 1 SOL equals 1e9 lamports.
  keywords: [lamport, balance]
- title: Birdeye
  content: Prices come from the public price endpoint.
  tags: [price]
`), 0o600))

	p, err := LoadStaticProvider(yamlPath, 0)
	require.NoError(t, err)
	got := p.Query("What is my BALANCE?", "")
	require.Len(t, got, 1)
	assert.Equal(t, "Lamports", got[0].Title)

	got = p.Query("hello", "GET_TOKEN_PRICE")
	require.Len(t, got, 1)
	assert.Equal(t, "Birdeye", got[0].Title)

	jsonPath := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"title":"Always","content":"shown"}]`), 0o600))
	p, err = LoadStaticProvider(jsonPath, 2)
	require.NoError(t, err)
	assert.Len(t, p.Query("anything", ""), 1)

	_, err = LoadStaticProvider("", 1)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Empty(t, Format(nil))
	assert.Equal(t, "Relevant knowledge:\n- A: one\n- two", Format([]Snippet{
		{Title: "A", Content: "one"},
		{},
		{Content: "two"},
	}))
}

func TestNilProvider(t *testing.T) {
	var p *StaticProvider
	assert.Nil(t, p.Query("x", "y"))
}
