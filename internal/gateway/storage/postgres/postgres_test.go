package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/migrate"
	"github.com/go-arcade/modelgate/internal/gateway/storage/storagetest"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/id"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

const dsnEnv = "MODELGATE_TEST_POSTGRES_DSN"

// newTestAdapter connects to the database named by MODELGATE_TEST_POSTGRES_DSN,
// isolating each test in its own schema.
func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	schema := "mg_test_" + id.GetXid()
	a := New(database.PostgresConfig{URL: dsn, Schema: schema, PoolSize: 4}, metrics.New())
	t.Cleanup(func() {
		if db, err := a.lazy.Get(context.Background()); err == nil {
			_ = db.Exec("DROP SCHEMA IF EXISTS " + database.QuoteIdent(schema) + " CASCADE").Error
		}
		_ = a.Close()
	})
	return a
}

func factory(t *testing.T) repo.Backend {
	a := newTestAdapter(t)
	_, err := a.Migrate(context.Background())
	require.NoError(t, err)
	return a
}

func TestProjectRepository(t *testing.T) {
	storagetest.RunProjectRepository(t, factory)
}

func TestWorkspaceRepository(t *testing.T) {
	storagetest.RunWorkspaceRepository(t, factory)
}

func TestAdapter_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	applied, err := a.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrate.IDs, applied)

	applied, err = a.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestAdapter_UpgradesLegacyLedger(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	schema := "mg_test_" + id.GetXid()
	cfg := database.PostgresConfig{URL: dsn, Schema: schema, PoolSize: 2}

	seed, err := database.NewPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seed.Exec("DROP SCHEMA IF EXISTS " + database.QuoteIdent(schema) + " CASCADE").Error
		_ = database.Close(seed)
	})
	for _, m := range Migrations()[:2] {
		require.NoError(t, m.Up(ctx, seed))
	}
	require.NoError(t, seed.Exec("CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY)").Error)
	require.NoError(t, seed.Exec("INSERT INTO schema_migrations (version) VALUES (1), (2)").Error)

	a := New(cfg, nil)
	t.Cleanup(func() { _ = a.Close() })
	applied, err := a.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrate.IDs[2:], applied)

	var legacy int64
	require.NoError(t, seed.Raw("SELECT count(*) FROM schema_migrations_legacy").Scan(&legacy).Error)
	assert.EqualValues(t, 2, legacy)
}

func TestNewManaged_RequiresTLS(t *testing.T) {
	a := NewManaged(database.ManagedPostgresConfig{URL: "postgres://u:p@db.example.com/app"}, nil)
	assert.Equal(t, ManagedProvider, a.Provider())

	cfg := database.ManagedPostgresConfig{URL: "postgres://u:p@db.example.com/app"}.Postgres()
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, 4, cfg.PoolSize)
}

// jsonb cannot hold U+0000 inside strings; such states are refused and nothing is stored.
func TestAdapter_RejectsNulInState(t *testing.T) {
	ctx := context.Background()
	b := factory(t)
	scope := model.ProjectScope{TenantID: "t", ProjectID: "nul"}

	err := b.Save(ctx, model.ProjectRecord{Scope: scope, State: json.RawMessage(`{"s":"a\u0000b"}`)})
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "22P05", pgErr.Code)

	rec, err := b.Find(ctx, scope)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAdapter_MissingURLIsUnavailable(t *testing.T) {
	a := New(database.PostgresConfig{}, nil)
	err := a.Ping(context.Background())
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
}

func TestDialect_UniqueViolation(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		wantOK bool
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "ux_accounts_local_login_id"}, want: "ux_accounts_local_login_id", wantOK: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"}), want: "accounts_pkey", wantOK: true},
		{name: "other code", err: &pgconn.PgError{Code: "23503"}},
		{name: "not pg", err: assert.AnError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := dialect{name: Provider}.UniqueViolation(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
