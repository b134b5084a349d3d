package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestInitWritesCallerAndAudit(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.log")
	auditPath := filepath.Join(dir, "audit", "audit.log")
	t.Cleanup(func() { _ = Init(Config{}) })

	require.NoError(t, Init(Config{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{appPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}))
	Named("api").Debug("request completed", "status", 200)
	Audit().Warn("api token rejected", "path", "/api/v1/messages")
	require.NoError(t, Sync())

	app := readEntries(t, appPath)
	require.Len(t, app, 1)
	assert.Equal(t, "request completed", app[0]["msg"])
	assert.Equal(t, "api", app[0]["component"])
	assert.Contains(t, app[0]["caller"], "logger_test.go")

	audit := readEntries(t, auditPath)
	require.Len(t, audit, 1)
	assert.Equal(t, "api token rejected", audit[0]["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "warn", parseLevel("WARNING").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}
