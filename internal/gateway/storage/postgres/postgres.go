// Package postgres is the networked SQL backend, including the managed variant.
package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlrepo"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

const (
	Provider        = "postgres"
	ManagedProvider = "managed-postgres"
)

// Adapter serves both repository ports from a pooled Postgres connection.
type Adapter struct {
	*sqlrepo.Store
	lazy     *sqlrepo.Lazy
	provider string
}

var _ repo.Backend = (*Adapter)(nil)

// New returns an adapter that connects on first use.
func New(cfg database.PostgresConfig, reg *metrics.Registry) *Adapter {
	return newAdapter(Provider, cfg, reg)
}

// NewManaged returns an adapter for a hosted instance: TLS is required and the pool is smaller.
func NewManaged(cfg database.ManagedPostgresConfig, reg *metrics.Registry) *Adapter {
	return newAdapter(ManagedProvider, cfg.Postgres(), reg)
}

func newAdapter(provider string, cfg database.PostgresConfig, reg *metrics.Registry) *Adapter {
	open := func(ctx context.Context) (*gorm.DB, error) {
		return database.NewPostgres(ctx, cfg)
	}
	lazy := sqlrepo.NewLazy(provider, open, Migrations(), reg)
	return &Adapter{
		Store:    sqlrepo.New(lazy.Get, dialect{name: provider}),
		lazy:     lazy,
		provider: provider,
	}
}

func (a *Adapter) Provider() string { return a.provider }

func (a *Adapter) Ping(ctx context.Context) error { return a.lazy.Ping(ctx) }

func (a *Adapter) Migrate(ctx context.Context) ([]string, error) { return a.lazy.Migrate(ctx) }

func (a *Adapter) Close() error { return a.lazy.Close() }
