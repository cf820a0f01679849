package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/go-arcade/modelgate/pkg/log"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Provider)
	assert.Equal(t, "./data/modelgate.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 30*time.Second, cfg.Database.DocStore.LockTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Database.DocStore.LockPoll)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, 8081, cfg.Http.Port)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout)
	assert.Equal(t, "modelgate", cfg.Trace.ServiceName)
	assert.False(t, cfg.Trace.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[database]
provider = "postgres"

[database.postgres]
url = "postgres://file/db"
schema = "gateway"
poolSize = 3

[http]
port = 9000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("MODELGATE_DATABASE_POSTGRES_URL", "postgres://env/db")
	t.Setenv("MODELGATE_DATABASE_DOCSTORE_APIKEY", "secret")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Provider)
	assert.Equal(t, "postgres://env/db", cfg.Database.Postgres.URL)
	assert.Equal(t, "gateway", cfg.Database.Postgres.Schema)
	assert.Equal(t, 3, cfg.Database.Postgres.PoolSize)
	assert.Equal(t, "secret", cfg.Database.DocStore.APIKey)
	assert.Equal(t, 9000, cfg.Http.Port)
}

func TestLoad_UnsupportedProviderStillLoads(t *testing.T) {
	t.Setenv("MODELGATE_DATABASE_PROVIDER", "couchdb")
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "couchdb", ProvideDatabase(cfg).Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestWatchLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"INFO\"\n"), 0o600))
	_, loader, err := Load(path)
	require.NoError(t, err)
	log.SetLevel("INFO")
	WatchLogLevel(loader)

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"ERROR\"\n"), 0o600))
	assert.Eventually(t, func() bool { return log.GetLevel() == zapcore.ErrorLevel }, 3*time.Second, 20*time.Millisecond)
	log.SetLevel("INFO")
}
