// Package projectlock serializes mutating operations on one project within
// this process. It is an ordering aid: cross-process safety still comes from
// the storage CAS.
package projectlock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/safe"
)

// DefaultReadOnly lists operations that bypass the queue.
var DefaultReadOnly = []string{"project.load", "project.list", "project.status", "project.export"}

const lockLabel = "projectlock"

const (
	jobQueued int32 = iota
	jobRunning
	jobDropped
)

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	state  atomic.Int32
	queued time.Time
	done   chan error
}

// mailbox is one key's FIFO. It is owned by a single drain goroutine and
// removed from the manager once empty.
type mailbox struct {
	jobs []*job
}

// Manager runs at most one queued job per key at a time, in arrival order.
type Manager struct {
	readOnly map[string]struct{}
	metrics  *metrics.Registry

	mu     sync.Mutex
	queues map[string]*mailbox
}

type Option func(*Manager)

// WithReadOnly replaces the read-only allow-list.
func WithReadOnly(operations ...string) Option {
	return func(m *Manager) {
		m.readOnly = make(map[string]struct{}, len(operations))
		for _, op := range operations {
			m.readOnly[op] = struct{}{}
		}
	}
}

func New(reg *metrics.Registry, opts ...Option) *Manager {
	m := &Manager{metrics: reg, queues: make(map[string]*mailbox)}
	WithReadOnly(DefaultReadOnly...)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsReadOnly reports whether operation bypasses the queue.
func (m *Manager) IsReadOnly(operation string) bool {
	_, ok := m.readOnly[operation]
	return ok
}

// Do runs fn for key. Read-only operations run immediately on the caller's
// goroutine. Others wait for every earlier job on the same key. If ctx ends
// before the job starts, the job is dropped and ctx.Err() returned; once
// started, fn runs to completion under a context that is never cancelled and
// Do returns its result. A panic in fn comes back as a *safe.PanicError.
func (m *Manager) Do(ctx context.Context, key, operation string, fn func(context.Context) error) error {
	if m.IsReadOnly(operation) {
		return safe.Call(func() error { return fn(ctx) })
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{ctx: ctx, fn: fn, queued: time.Now(), done: make(chan error, 1)}
	m.mu.Lock()
	mb, ok := m.queues[key]
	if !ok {
		mb = &mailbox{}
		m.queues[key] = mb
	}
	mb.jobs = append(mb.jobs, j)
	m.mu.Unlock()
	if !ok {
		safe.Go(func() { m.drain(key, mb) })
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobDropped) {
			return ctx.Err()
		}
		return <-j.done
	}
}

func (m *Manager) drain(key string, mb *mailbox) {
	for {
		m.mu.Lock()
		if len(mb.jobs) == 0 {
			delete(m.queues, key)
			m.mu.Unlock()
			return
		}
		j := mb.jobs[0]
		mb.jobs[0] = nil
		mb.jobs = mb.jobs[1:]
		m.mu.Unlock()

		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			continue
		}
		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}
		m.metrics.ObserveLockWait(lockLabel, time.Since(j.queued))
		j.done <- safe.Call(func() error { return j.fn(context.WithoutCancel(j.ctx)) })
	}
}

// Pending returns the number of keys with queued or running jobs.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}
