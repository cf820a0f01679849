package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/docstore/docstoretest"
	"github.com/go-arcade/modelgate/internal/gateway/storage/provider"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlite"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/storage"
)

func sqliteBackend(t *testing.T) repo.Backend {
	t.Helper()
	b := sqlite.New(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "gateway.db")}, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func localStore(t *testing.T) storage.Conf {
	return storage.Conf{Provider: "local", Local: storage.LocalConf{Path: t.TempDir()}}
}

// stubBackend overrides Ping; every other method panics through the nil embed.
type stubBackend struct {
	repo.Backend
	ping func(ctx context.Context) error
}

func (s stubBackend) Provider() string { return "stub" }

func (s stubBackend) Ping(ctx context.Context) error { return s.ping(ctx) }

func scrape(t *testing.T, reg *metrics.Registry) string {
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestChecker_Ready(t *testing.T) {
	reg := metrics.New()
	c := NewChecker(sqliteBackend(t), localStore(t), Conf{}, reg)

	s := c.Check(context.Background())
	assert.True(t, s.Ready())
	assert.Equal(t, Report{Provider: "sqlite", State: StateReady, Ready: true}, s.Database)
	assert.Equal(t, StateReady, s.Storage.State)
	assert.Equal(t, "local", s.Storage.Provider)
	assert.NotEmpty(t, s.Storage.Details["location"])
	assert.False(t, s.CheckedAt.IsZero())

	body := scrape(t, reg)
	assert.True(t, strings.Contains(body, `modelgate_backend_ready{kind="database",provider="sqlite"} 1`))
	assert.True(t, strings.Contains(body, `modelgate_backend_ready{kind="storage",provider="local"} 1`))
}

func TestChecker_MisconfiguredNeverFails(t *testing.T) {
	reg := metrics.New()
	backend := provider.Select(database.Conf{Provider: "couchdb"}, reg)
	c := NewChecker(backend, storage.Conf{Provider: "tape"}, Conf{}, reg)

	s := c.Check(context.Background())
	assert.False(t, s.Ready())
	assert.Equal(t, "couchdb", s.Database.Provider)
	assert.Equal(t, StateUnready, s.Database.State)
	assert.Equal(t, "unsupported provider", s.Database.Reason)
	assert.Contains(t, s.Database.Details["error"], "unsupported provider")

	assert.Equal(t, "tape", s.Storage.Provider)
	assert.Equal(t, StateUnready, s.Storage.State)
	assert.Equal(t, "misconfigured", s.Storage.Reason)

	assert.True(t, strings.Contains(scrape(t, reg), `modelgate_backend_ready{kind="database",provider="couchdb"} 0`))
}

func TestChecker_MissingDocStoreCredentials(t *testing.T) {
	backend := provider.Select(database.Conf{Provider: "docstore"}, nil)
	s := NewChecker(backend, localStore(t), Conf{}, nil).Check(context.Background())
	assert.Equal(t, StateUnready, s.Database.State)
	assert.Equal(t, "invalid configuration", s.Database.Reason)
	assert.True(t, s.Storage.Ready)
}

func TestChecker_StorageProbeFails(t *testing.T) {
	conf := storage.Conf{Local: storage.LocalConf{Path: filepath.Join(t.TempDir(), "missing")}}
	s := NewChecker(sqliteBackend(t), conf, Conf{}, nil).Check(context.Background())
	assert.True(t, s.Database.Ready)
	assert.Equal(t, StateUnready, s.Storage.State)
	assert.Equal(t, "probe failed", s.Storage.Reason)
	assert.NotEmpty(t, s.Storage.Details["error"])
}

func TestChecker_TimeoutIsUnknown(t *testing.T) {
	backend := stubBackend{ping: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	s := NewChecker(backend, localStore(t), Conf{Timeout: 20 * time.Millisecond}, nil).Check(context.Background())
	assert.Equal(t, StateUnknown, s.Database.State)
	assert.False(t, s.Database.Ready)
	assert.Contains(t, s.Database.Reason, "20ms")
}

func TestChecker_SlowDocStoreFirstUseIsUnknown(t *testing.T) {
	srv := docstoretest.NewServer(t)
	srv.SetDelay(time.Second)
	backend := provider.Select(database.Conf{Provider: "docstore", DocStore: database.DocStoreConfig{
		BaseURL: srv.URL, Project: docstoretest.Project, APIKey: docstoretest.APIKey,
		RequestTimeout: 5 * time.Second,
	}}, nil)
	t.Cleanup(func() {
		srv.SetDelay(0)
		_ = backend.Close()
	})

	start := time.Now()
	s := NewChecker(backend, localStore(t), Conf{Timeout: 100 * time.Millisecond}, nil).Check(context.Background())
	assert.Less(t, time.Since(start), 700*time.Millisecond)
	assert.Equal(t, StateUnknown, s.Database.State)
	assert.True(t, s.Storage.Ready)
}

func TestChecker_PanicIsUnready(t *testing.T) {
	backend := stubBackend{ping: func(context.Context) error { panic("driver bug") }}
	s := NewChecker(backend, localStore(t), Conf{}, nil).Check(context.Background())
	assert.Equal(t, StateUnready, s.Database.State)
	assert.Equal(t, "probe panicked", s.Database.Reason)
	assert.True(t, s.Storage.Ready)
}

func TestMonitor(t *testing.T) {
	m := NewMonitor(NewChecker(sqliteBackend(t), localStore(t), Conf{}, nil), Conf{Interval: 10 * time.Millisecond})

	initial := m.Status()
	assert.Equal(t, StateUnknown, initial.Database.State)
	assert.Equal(t, "sqlite", initial.Database.Provider)
	assert.False(t, initial.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return m.Status().Ready() }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestConf_SetDefaults(t *testing.T) {
	c := Conf{}
	c.SetDefaults()
	assert.Equal(t, 30*time.Second, c.Interval)
	assert.Equal(t, 5*time.Second, c.Timeout)
}
