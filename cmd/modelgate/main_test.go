package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func sqliteEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODELGATE_DATABASE_SQLITE_PATH", filepath.Join(dir, "gateway.db"))
	t.Setenv("MODELGATE_STORAGE_LOCAL_PATH", dir)
}

func TestMigrateThenHealth(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite: ")

	out, err = run(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "ready"`)
}

func TestHealthFailsWhenUnready(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("MODELGATE_DATABASE_PROVIDER", "docstore")

	out, err := run(t, "health")
	assert.Error(t, err)
	assert.Contains(t, out, `"state": "unready"`)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
}

func TestApiKeyIssueUnknownWorkspace(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "apikey", "issue", "--workspace", "ws_missing", "--name", "ci", "--ttl", "30d")
	assert.Error(t, err)
}
