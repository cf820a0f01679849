package sqlrepo

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/migrate"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

// Opener builds a fresh database handle.
type Opener func(ctx context.Context) (*gorm.DB, error)

// Lazy owns one adapter's database handle. The handle is opened and migrated
// on first use; a failed open is retried by the next caller.
type Lazy struct {
	provider   string
	open       Opener
	migrations []migrate.Migration[*gorm.DB]
	metrics    *metrics.Registry

	group   singleflight.Group
	mu      sync.RWMutex
	db      *gorm.DB
	applied []string
	closed  bool
}

func NewLazy(provider string, open Opener, migrations []migrate.Migration[*gorm.DB], reg *metrics.Registry) *Lazy {
	return &Lazy{provider: provider, open: open, migrations: migrations, metrics: reg}
}

// Get returns the open handle, opening and migrating it when needed.
func (l *Lazy) Get(ctx context.Context) (*gorm.DB, error) {
	l.mu.RLock()
	db, closed := l.db, l.closed
	l.mu.RUnlock()
	if closed {
		return nil, repo.NewUnavailable(l.provider, "closed", nil)
	}
	if db != nil {
		return db, nil
	}

	// One caller's cancellation must not fail everyone sharing this open, but
	// it does stop that caller waiting.
	ch := l.group.DoChan("open", func() (any, error) {
		l.mu.RLock()
		db := l.db
		l.mu.RUnlock()
		if db != nil {
			return db, nil
		}
		return l.openAndMigrate(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	}
}

func (l *Lazy) openAndMigrate(ctx context.Context) (*gorm.DB, error) {
	db, err := l.open(ctx)
	if err != nil {
		return nil, repo.NewUnavailable(l.provider, "open failed", err)
	}
	applied, err := migrate.Run(ctx, migrate.NewGormLedger(db), l.migrations)
	l.metrics.AddMigrations(l.provider, len(applied))
	if err != nil {
		if cerr := database.Close(db); cerr != nil {
			log.Warnw("close after failed migration", "provider", l.provider, "error", cerr)
		}
		return nil, fmt.Errorf("%s migrations: %w", l.provider, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = database.Close(db)
		return nil, repo.NewUnavailable(l.provider, "closed", nil)
	}
	l.db = db
	l.applied = applied
	return db, nil
}

// Migrate opens the handle when needed and returns the ids applied by this call,
// including those applied while opening.
func (l *Lazy) Migrate(ctx context.Context) ([]string, error) {
	db, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	done := l.applied
	l.applied = nil
	l.mu.Unlock()

	more, err := migrate.Run(ctx, migrate.NewGormLedger(db), l.migrations)
	l.metrics.AddMigrations(l.provider, len(more))
	if err != nil {
		return append(done, more...), fmt.Errorf("%s migrations: %w", l.provider, err)
	}
	return append(done, more...), nil
}

// Ping opens the handle when needed and checks the connection.
func (l *Lazy) Ping(ctx context.Context) error {
	db, err := l.Get(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return repo.NewUnavailable(l.provider, "no connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return repo.NewUnavailable(l.provider, "ping failed", err)
	}
	return nil
}

// Close releases the handle. Later calls fail as unavailable.
func (l *Lazy) Close() error {
	l.mu.Lock()
	db := l.db
	l.db = nil
	l.closed = true
	l.mu.Unlock()
	if db == nil {
		return nil
	}
	return database.Close(db)
}
