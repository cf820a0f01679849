package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `mapstructure:"name"`
	DB   struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"db"`
}

func TestLoader_DefaultsOnly(t *testing.T) {
	var cfg sample
	l := New("", "CONFTEST", map[string]any{"name": "svc", "db.timeout": "2s"})
	require.NoError(t, l.Load(&cfg))
	assert.Equal(t, "svc", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.DB.Timeout)
}

func TestLoader_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"file\"\n[db]\nurl = \"postgres://file\"\n"), 0o600))
	t.Setenv("CONFTEST_DB_URL", "postgres://env")

	var cfg sample
	l := New(path, "CONFTEST", map[string]any{"db.timeout": "1s"})
	require.NoError(t, l.Load(&cfg))
	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, "postgres://env", cfg.DB.URL)
	assert.Equal(t, time.Second, cfg.DB.Timeout)
}

func TestLoader_Errors(t *testing.T) {
	var cfg sample
	assert.Error(t, New("", "", nil).Load(cfg))
	assert.Error(t, New(filepath.Join(t.TempDir(), "missing.toml"), "", nil).Load(&cfg))
}
