package provider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/docstore"
	"github.com/go-arcade/modelgate/internal/gateway/storage/instrument"
	"github.com/go-arcade/modelgate/internal/gateway/storage/postgres"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlite"
	"github.com/go-arcade/modelgate/pkg/database"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		provider string
		want     any
	}{
		{provider: "sqlite", want: &sqlite.Adapter{}},
		{provider: " Postgres ", want: &postgres.Adapter{}},
		{provider: "managed-postgres", want: &postgres.Adapter{}},
		{provider: "docstore", want: &docstore.Adapter{}},
		{provider: "mongodb", want: &Unavailable{}},
		{provider: "", want: &Unavailable{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			b := Select(database.Conf{Provider: tt.provider}, nil)
			t.Cleanup(func() { _ = b.Close() })
			assert.IsType(t, tt.want, b)
		})
	}
	assert.Equal(t, postgres.ManagedProvider, Select(database.Conf{Provider: "managed-postgres"}, nil).Provider())
}

func TestUnsupportedProviderIsUnavailable(t *testing.T) {
	ctx := context.Background()
	b := Select(database.Conf{Provider: "mongodb"}, nil)
	assert.Equal(t, "mongodb", b.Provider())

	err := b.Ping(ctx)
	require.ErrorIs(t, err, repo.ErrBackendUnavailable)
	assert.ErrorIs(t, err, repo.ErrUnsupportedProvider)
	var unavailable *repo.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "unsupported provider", unavailable.Reason)

	_, err = b.Find(ctx, model.ProjectScope{TenantID: "t", ProjectID: "p"})
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	_, err = b.SaveIfRevision(ctx, model.ProjectRecord{}, nil)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	_, err = b.ListWorkspaces(ctx)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	_, err = b.GetServiceSettings(ctx)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	_, err = b.Migrate(ctx)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)
	assert.NoError(t, b.Close())
}

func TestMissingCredentialsAreUnavailable(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"postgres", "managed-postgres", "docstore"} {
		t.Run(name, func(t *testing.T) {
			b := Select(database.Conf{Provider: name}, nil)
			t.Cleanup(func() { _ = b.Close() })
			assert.ErrorIs(t, b.Ping(ctx), repo.ErrBackendUnavailable)
		})
	}
}

func TestProvideBackend(t *testing.T) {
	ctx := context.Background()
	conf := database.Conf{
		Provider: "sqlite",
		FailFast: true,
		SQLite:   database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "gateway.db")},
	}
	b, cleanup, err := ProvideBackend(ctx, conf, nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	assert.IsType(t, &instrument.Backend{}, b)
	assert.Equal(t, sqlite.Provider, b.Provider())

	_, err = b.ListWorkspaces(ctx)
	assert.NoError(t, err)
}

func TestProvideBackend_FailFast(t *testing.T) {
	ctx := context.Background()

	_, _, err := ProvideBackend(ctx, database.Conf{Provider: "docstore", FailFast: true}, nil)
	assert.ErrorIs(t, err, repo.ErrBackendUnavailable)

	b, cleanup, err := ProvideBackend(ctx, database.Conf{Provider: "docstore"}, nil)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	assert.ErrorIs(t, b.Ping(ctx), repo.ErrBackendUnavailable)
}
