package instrument

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlite"
	"github.com/go-arcade/modelgate/internal/gateway/storage/storagetest"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

func newBackend(t *testing.T, reg *metrics.Registry) *Backend {
	t.Helper()
	a := sqlite.New(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "gateway.db")}, reg)
	t.Cleanup(func() { _ = a.Close() })
	_, err := a.Migrate(context.Background())
	require.NoError(t, err)
	return Wrap(a, reg)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func repoSpans(rec *tracetest.SpanRecorder) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if len(s.Name()) > 5 && s.Name()[:5] == "repo." {
			out = append(out, s)
		}
	}
	return out
}

func TestProjectRepository(t *testing.T) {
	storagetest.RunProjectRepository(t, func(t *testing.T) repo.Backend {
		return newBackend(t, metrics.New())
	})
}

func TestWorkspaceRepository(t *testing.T) {
	storagetest.RunWorkspaceRepository(t, func(t *testing.T) repo.Backend {
		return newBackend(t, nil)
	})
}

func TestBackend_CountsCASOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := metrics.New()
	b := newBackend(t, reg)
	scope := model.ProjectScope{TenantID: "t1", ProjectID: "p1"}
	now := time.Now().UTC()

	first := model.ProjectRecord{Scope: scope, Revision: model.NewRevision(), State: []byte(`{}`), CreatedAt: now, UpdatedAt: now}
	ok, err := b.SaveIfRevision(ctx, first, nil)
	require.NoError(t, err)
	require.True(t, ok)

	again := first
	again.Revision = model.NewRevision()
	ok, err = b.SaveIfRevision(ctx, again, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	body := gather(t, reg)
	assert.Contains(t, body, `modelgate_cas_total{provider="sqlite",result="won"} 1`)
	assert.Contains(t, body, `modelgate_cas_total{provider="sqlite",result="lost"} 1`)
	assert.Contains(t, body, `modelgate_repository_op_seconds_count{op="SaveIfRevision",provider="sqlite"} 2`)
}

func TestBackend_SpansCarryErrors(t *testing.T) {
	rec := recordSpans(t)
	ctx := context.Background()
	b := newBackend(t, nil)

	_, err := b.Find(ctx, model.ProjectScope{TenantID: "t1"})
	require.ErrorIs(t, err, repo.ErrInvalidScope)
	_, err = b.GetWorkspace(ctx, "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)

	spans := repoSpans(rec)
	require.Len(t, spans, 2)
	assert.Equal(t, "repo.Find", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "repo.GetWorkspace", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestBackend_LifecyclePassesThrough(t *testing.T) {
	b := newBackend(t, nil)
	assert.Equal(t, sqlite.Provider, b.Provider())
	assert.NoError(t, b.Ping(context.Background()))
	applied, err := b.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.IsType(t, &sqlite.Adapter{}, b.Unwrap())
}

func gather(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	n, err := testutil.GatherAndCount(reg.Gatherer(), "modelgate_cas_total")
	require.NoError(t, err)
	require.NotZero(t, n)
	return scrape(t, reg)
}

func scrape(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
