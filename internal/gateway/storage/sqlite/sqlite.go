// Package sqlite is the embedded single-file backend.
package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlrepo"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

const Provider = "sqlite"

// Adapter serves both repository ports from one database file.
type Adapter struct {
	*sqlrepo.Store
	lazy *sqlrepo.Lazy
}

var _ repo.Backend = (*Adapter)(nil)

// New returns an adapter that opens cfg.Path on first use.
func New(cfg database.SQLiteConfig, reg *metrics.Registry) *Adapter {
	open := func(ctx context.Context) (*gorm.DB, error) {
		return database.NewSQLite(ctx, cfg)
	}
	lazy := sqlrepo.NewLazy(Provider, open, Migrations(), reg)
	return &Adapter{Store: sqlrepo.New(lazy.Get, dialect{}), lazy: lazy}
}

func (a *Adapter) Provider() string { return Provider }

func (a *Adapter) Ping(ctx context.Context) error { return a.lazy.Ping(ctx) }

func (a *Adapter) Migrate(ctx context.Context) ([]string, error) { return a.lazy.Migrate(ctx) }

func (a *Adapter) Close() error { return a.lazy.Close() }
