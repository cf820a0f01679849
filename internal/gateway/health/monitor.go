package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/loop"
)

// Monitor re-runs the checker on an interval and caches the latest status.
type Monitor struct {
	checker  *Checker
	interval time.Duration

	mu   sync.RWMutex
	last Status
}

func NewMonitor(checker *Checker, conf Conf) *Monitor {
	conf.SetDefaults()
	provider := checker.backend.Provider()
	return &Monitor{
		checker:  checker,
		interval: conf.Interval,
		last: Status{
			Database: unknown(provider, "not checked yet"),
			Storage:  unknown(checker.storage, "not checked yet"),
		},
	}
}

// Status returns the cached result of the most recent check.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Refresh runs one check now and caches it.
func (m *Monitor) Refresh(ctx context.Context) Status {
	s := m.checker.Check(ctx)
	m.mu.Lock()
	prev := m.last
	m.last = s
	m.mu.Unlock()

	if prev.Database.State != s.Database.State || prev.Storage.State != s.Storage.State {
		log.Infow("health changed",
			"database", s.Database.State, "databaseReason", s.Database.Reason,
			"storage", s.Storage.State, "storageReason", s.Storage.Reason)
	}
	return s
}

// Run checks until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	_ = loop.New(loop.WithContext(ctx), loop.WithInterval(m.interval)).Do(func() (bool, error) {
		m.Refresh(ctx)
		return ctx.Err() != nil, nil
	})
}
