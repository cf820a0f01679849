package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/config"
	"github.com/go-arcade/modelgate/internal/gateway/health"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/server"
	"github.com/go-arcade/modelgate/internal/gateway/service"
	"github.com/go-arcade/modelgate/internal/gateway/storage/provider"
	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/shutdown"
)

func initForTest(ctx context.Context, cfg *config.AppConfig) (*App, func(), error) {
	reg := metrics.New()
	backend, cleanup, err := provider.ProvideBackend(ctx, cfg.Database, reg)
	if err != nil {
		return nil, nil, err
	}
	locks := service.ProvideProjectLocks(reg)
	services := service.NewServices(service.NewProjectService(backend, locks), service.NewWorkspaceService(backend))
	monitor := health.NewMonitor(health.NewChecker(backend, cfg.Storage, cfg.Health, reg), cfg.Health)
	sm := shutdown.NewManager()
	router := server.NewRouter(cfg.Http, monitor, reg, sm)
	return NewApp(cfg, backend, services, monitor, router, reg, sm), cleanup, nil
}

func TestBootstrap_SqliteMigrates(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODELGATE_DATABASE_SQLITE_PATH", filepath.Join(dir, "gateway.db"))
	t.Setenv("MODELGATE_STORAGE_LOCAL_PATH", dir)

	ctx := context.Background()
	app, cleanup, err := Bootstrap(ctx, "", initForTest)
	require.NoError(t, err)
	defer func() { assert.NoError(t, cleanup()) }()

	assert.Equal(t, "sqlite", app.Backend.Provider())
	applied, err := Migrate(ctx, app)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)

	again, err := Migrate(ctx, app)
	require.NoError(t, err)
	assert.Empty(t, again)

	st := app.Monitor.Refresh(ctx)
	assert.True(t, st.Ready())
}

func TestBootstrap_InitErrorStopsTracing(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Bootstrap(context.Background(), "", func(context.Context, *config.AppConfig) (*App, func(), error) {
		return nil, nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestBootstrap_UnsupportedProviderIsUnready(t *testing.T) {
	t.Setenv("MODELGATE_DATABASE_PROVIDER", "couchdb")
	t.Setenv("MODELGATE_STORAGE_LOCAL_PATH", t.TempDir())

	ctx := context.Background()
	app, cleanup, err := Bootstrap(ctx, "", initForTest)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	_, err = Migrate(ctx, app)
	assert.Error(t, err)
	st := app.Monitor.Refresh(ctx)
	assert.False(t, st.Ready())
	assert.Equal(t, health.StateUnready, st.Database.State)
}

// closeFailing is a backend whose Close fails; nothing else is called.
type closeFailing struct {
	repo.Backend
	err error
}

func (b closeFailing) Provider() string { return "stub" }
func (b closeFailing) Close() error     { return b.err }

func TestBootstrap_CleanupReportsBackendClose(t *testing.T) {
	boom := errors.New("close boom")
	cleaned := false
	_, cleanup, err := Bootstrap(context.Background(), "", func(context.Context, *config.AppConfig) (*App, func(), error) {
		return &App{Backend: closeFailing{err: boom}}, func() { cleaned = true }, nil
	})
	require.NoError(t, err)

	err = cleanup()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close stub backend")
	assert.True(t, cleaned)
}

func TestBootstrap_UnreachableDocStoreIsUnready(t *testing.T) {
	t.Setenv("MODELGATE_DATABASE_PROVIDER", "docstore")
	t.Setenv("MODELGATE_DATABASE_DOCSTORE_BASEURL", fmt.Sprintf("http://127.0.0.1:%d", freePort(t)))
	t.Setenv("MODELGATE_DATABASE_DOCSTORE_PROJECT", "p")
	t.Setenv("MODELGATE_DATABASE_DOCSTORE_APIKEY", "k")
	t.Setenv("MODELGATE_STORAGE_LOCAL_PATH", t.TempDir())

	ctx := context.Background()
	app, cleanup, err := Bootstrap(ctx, "", initForTest)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	_, err = Migrate(ctx, app)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	var ue *repo.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "unreachable", ue.Reason)

	st := app.Monitor.Refresh(ctx)
	assert.False(t, st.Ready())
}

func freePort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRun_ServesUnreadyBackendUntilCancelled(t *testing.T) {
	port := freePort(t)
	t.Setenv("MODELGATE_DATABASE_PROVIDER", "couchdb")
	t.Setenv("MODELGATE_STORAGE_LOCAL_PATH", t.TempDir())
	t.Setenv("MODELGATE_HTTP_HOST", "127.0.0.1")
	t.Setenv("MODELGATE_HTTP_PORT", strconv.Itoa(port))

	app, cleanup, err := Bootstrap(context.Background(), "", initForTest)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, app) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusServiceUnavailable
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Eventually(t, app.Shutdown.IsShuttingDown, time.Second, 10*time.Millisecond)
}
