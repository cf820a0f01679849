package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/id"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/retry"
)

const (
	locksCollection = "gateway_locks"

	DefaultLockTTL     = 30 * time.Second
	DefaultLockTimeout = 10 * time.Second
	DefaultLockPoll    = 100 * time.Millisecond

	// reclaimRounds bounds the create/inspect/reclaim cycle within one poll.
	reclaimRounds = 4
)

var errLockHeld = errors.New("lock held by another owner")

type lockDoc struct {
	Owner     string `json:"owner"`
	Scope     string `json:"scope"`
	ExpiresAt int64  `json:"expiresAt"` // unix millis
}

func (d lockDoc) expired(now time.Time) bool {
	return now.UnixMilli() >= d.ExpiresAt
}

// LeaseLocker hands out per-scope leases stored as documents with an owner
// token and an expiry. A holder that stalls past the TTL can lose its lease to
// a new owner without noticing; callers still rely on revision checks for data.
type LeaseLocker struct {
	client   *Client
	ttl      time.Duration
	timeout  time.Duration
	poll     time.Duration
	now      func() time.Time
	metrics  *metrics.Registry
	provider string
}

func NewLeaseLocker(client *Client, ttl, timeout, poll time.Duration, reg *metrics.Registry) *LeaseLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if poll <= 0 {
		poll = DefaultLockPoll
	}
	return &LeaseLocker{
		client:   client,
		ttl:      ttl,
		timeout:  timeout,
		poll:     poll,
		now:      time.Now,
		metrics:  reg,
		provider: Provider,
	}
}

// Lease is a held lock. Release it exactly once.
type Lease struct {
	locker *LeaseLocker
	docID  string
	Owner  string
	Scope  string
}

func lockDocID(scope string) string {
	sum := sha256.Sum256([]byte(scope))
	return "lock_" + hex.EncodeToString(sum[:])[:40]
}

// Acquire blocks until the scope is free or the acquisition timeout elapses,
// in which case it returns repo.ErrLockTimeout.
func (l *LeaseLocker) Acquire(ctx context.Context, scope string) (*Lease, error) {
	lease := &Lease{locker: l, docID: lockDocID(scope), Owner: id.GetUUID(), Scope: scope}
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := retry.Do(waitCtx, func(ctx context.Context) error {
		return l.tryAcquire(ctx, lease)
	},
		retry.WithMaxAttempts(retry.Unlimited),
		retry.WithBackoff(retry.Fixed(l.poll)),
		retry.WithRetryIf(retry.On(errLockHeld)),
	)
	l.metrics.ObserveLockWait(l.provider, time.Since(start))
	if err != nil {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", repo.ErrLockTimeout, scope, l.timeout)
		}
		return nil, err
	}
	return lease, nil
}

// tryAcquire creates the lock document, reclaiming it first when the holder's lease has run out.
func (l *LeaseLocker) tryAcquire(ctx context.Context, lease *Lease) error {
	for round := 0; round < reclaimRounds; round++ {
		doc := lockDoc{Owner: lease.Owner, Scope: lease.Scope, ExpiresAt: l.now().Add(l.ttl).UnixMilli()}
		err := l.client.Create(ctx, locksCollection, lease.docID, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errDocumentExists) {
			return err
		}

		var holder lockDoc
		found, err := l.client.Get(ctx, locksCollection, lease.docID, &holder)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if !holder.expired(l.now()) {
			return errLockHeld
		}
		if err := l.reclaim(ctx, lease.docID, holder.Owner); err != nil {
			return err
		}
		log.Debugw("reclaimed expired lock", "scope", lease.Scope, "previousOwner", holder.Owner)
	}
	return errLockHeld
}

// reclaim deletes an expired lock only if the same owner still holds it.
func (l *LeaseLocker) reclaim(ctx context.Context, docID, owner string) error {
	var current lockDoc
	found, err := l.client.Get(ctx, locksCollection, docID, &current)
	if err != nil || !found || current.Owner != owner {
		return err
	}
	return l.client.Delete(ctx, locksCollection, docID)
}

// Release deletes the lock document if this lease still owns it. A lease that
// was reclaimed by someone else is left untouched.
func (lease *Lease) Release(ctx context.Context) error {
	l := lease.locker
	var current lockDoc
	found, err := l.client.Get(ctx, locksCollection, lease.docID, &current)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", lease.Scope, err)
	}
	if !found || current.Owner != lease.Owner {
		log.Warnw("lock lost before release", "scope", lease.Scope, "owner", lease.Owner)
		return nil
	}
	if err := l.client.Delete(ctx, locksCollection, lease.docID); err != nil {
		return fmt.Errorf("release lock %s: %w", lease.Scope, err)
	}
	return nil
}
