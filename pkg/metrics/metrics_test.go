package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ObserveCAS(t *testing.T) {
	r := New()
	r.ObserveCAS("sqlite", true, nil)
	r.ObserveCAS("sqlite", false, nil)
	r.ObserveCAS("sqlite", false, nil)
	r.ObserveCAS("sqlite", false, errors.New("io"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.casTotal.WithLabelValues("sqlite", "won")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.casTotal.WithLabelValues("sqlite", "lost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.casTotal.WithLabelValues("sqlite", "error")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveCAS("x", true, nil)
	r.ObserveLockWait("x", time.Second)
	r.AddMigrations("x", 2)
	r.ObserveOp("x", "find", time.Millisecond)
	r.SetReady("database", "x", true)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.AddMigrations("postgres", 6)
	r.SetReady("database", "postgres", true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `modelgate_migrations_applied_total{provider="postgres"} 6`))
	assert.True(t, strings.Contains(body, `modelgate_backend_ready{kind="database",provider="postgres"} 1`))
}
