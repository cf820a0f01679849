// Package docstore keeps projects and the workspace graph in a remote HTTP
// document store. The store has no transactions, so conditional writes run
// under a lease lock built from lock documents.
package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/migrate"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

const Provider = "docstore"

// session is the lazily built connection state shared by every call.
type session struct {
	client *Client
	locks  *LeaseLocker
}

// Adapter implements repo.Backend on the document store.
type Adapter struct {
	cfg     database.DocStoreConfig
	metrics *metrics.Registry
	now     func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	sess    *session
	applied []string
	closed  bool
}

var _ repo.Backend = (*Adapter)(nil)

// New returns an adapter that builds its client and applies migrations on first use.
func New(cfg database.DocStoreConfig, reg *metrics.Registry) *Adapter {
	return &Adapter{
		cfg:     cfg,
		metrics: reg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (a *Adapter) Provider() string { return Provider }

func (a *Adapter) conn(ctx context.Context) (*session, error) {
	a.mu.RLock()
	sess, closed := a.sess, a.closed
	a.mu.RUnlock()
	if closed {
		return nil, repo.NewUnavailable(Provider, "closed", nil)
	}
	if sess != nil {
		return sess, nil
	}

	// The shared open outlives any one caller; a caller whose ctx ends stops
	// waiting for it.
	ch := a.group.DoChan("open", func() (any, error) {
		a.mu.RLock()
		sess := a.sess
		a.mu.RUnlock()
		if sess != nil {
			return sess, nil
		}
		return a.open(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*session), nil
	}
}

func (a *Adapter) open(ctx context.Context) (*session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, repo.NewUnavailable(Provider, "invalid configuration", err)
	}
	client := NewClient(a.cfg)
	sess := &session{
		client: client,
		locks:  NewLeaseLocker(client, a.cfg.LockTTL, a.cfg.LockTimeout, a.cfg.LockPoll, a.metrics),
	}

	applied, err := migrate.Run(ctx, newLedger(sess, a.now), a.migrations())
	a.metrics.AddMigrations(Provider, len(applied))
	if err != nil {
		if isUnreachable(err) {
			return nil, repo.NewUnavailable(Provider, "unreachable", err)
		}
		return nil, fmt.Errorf("%s migrations: %w", Provider, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, repo.NewUnavailable(Provider, "closed", nil)
	}
	a.sess = sess
	a.applied = applied
	return sess, nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	sess, err := a.conn(ctx)
	if err != nil {
		return err
	}
	if err := sess.client.Ping(ctx); err != nil {
		return repo.NewUnavailable(Provider, "ping failed", err)
	}
	return nil
}

// Migrate returns the ids applied by this call, including any applied on first use.
func (a *Adapter) Migrate(ctx context.Context) ([]string, error) {
	sess, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	done := a.applied
	a.applied = nil
	a.mu.Unlock()

	more, err := migrate.Run(ctx, newLedger(sess, a.now), a.migrations())
	a.metrics.AddMigrations(Provider, len(more))
	if err != nil {
		return append(done, more...), fmt.Errorf("%s migrations: %w", Provider, err)
	}
	return append(done, more...), nil
}

// Close drops the session. The HTTP client holds no resources that need closing.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sess = nil
	a.closed = true
	return nil
}
