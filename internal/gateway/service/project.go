package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/projectlock"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/retry"
)

// casAttempts is the first write plus three retries.
const casAttempts = 4

var errLostCAS = errors.New("lost compare-and-swap")

// Snapshot is a decoded project record. Revision is empty when nothing is stored yet.
type Snapshot struct {
	Scope     model.ProjectScope
	Revision  string
	State     *model.StateEnvelope
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectService loads and mutates project state envelopes.
type ProjectService struct {
	projects repo.ProjectRepository
	locks    *projectlock.Manager
	now      func() time.Time
}

func NewProjectService(projects repo.Backend, locks *projectlock.Manager) *ProjectService {
	return &ProjectService{projects: projects, locks: locks, now: utcNow}
}

func snapshotOf(scope model.ProjectScope, rec *model.ProjectRecord) *Snapshot {
	if rec == nil {
		return &Snapshot{Scope: scope, State: model.NewStateEnvelope()}
	}
	return &Snapshot{
		Scope:     scope,
		Revision:  rec.Revision,
		State:     model.DecodeStateEnvelope(rec.State),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Load returns the current snapshot, or an empty one when the project has
// never been saved. operation names the caller for the lock allow-list.
func (s *ProjectService) Load(ctx context.Context, scope model.ProjectScope, operation string) (*Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var snap *Snapshot
	err := s.locks.Do(ctx, scope.Key(), operation, func(ctx context.Context) error {
		rec, err := s.projects.Find(ctx, scope)
		if err != nil {
			return err
		}
		snap = snapshotOf(scope, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns every snapshot of the tenant whose project id has scope.ProjectID as prefix.
func (s *ProjectService) List(ctx context.Context, scope model.ProjectScope) ([]*Snapshot, error) {
	records, err := s.projects.ListByScopePrefix(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]*Snapshot, 0, len(records))
	for i := range records {
		out = append(out, snapshotOf(records[i].Scope, &records[i]))
	}
	return out, nil
}

// Mutate applies fn to the current envelope and writes it back with a
// compare-and-swap. A lost race re-reads and reapplies fn; after the retries
// are spent it returns repo.ErrRevisionConflict. fn must be safe to call more
// than once.
func (s *ProjectService) Mutate(ctx context.Context, scope model.ProjectScope, operation string,
	fn func(env *model.StateEnvelope) error) (*Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var snap *Snapshot
	err := s.locks.Do(ctx, scope.Key(), operation, func(ctx context.Context) error {
		err := retry.Do(ctx, func(ctx context.Context) error {
			var err error
			snap, err = s.mutateOnce(ctx, scope, fn)
			return err
		},
			retry.WithMaxAttempts(casAttempts),
			retry.WithBackoff(retry.Linear(5*time.Millisecond, 50*time.Millisecond)),
			retry.WithJitter(retry.FullJitter),
			retry.WithRetryIf(retry.On(errLostCAS)),
			retry.WithOnRetry(func(attempt int, _ error) {
				log.WithContext(ctx).Debugw("project revision moved, retrying", "scope", scope.String(), "attempt", attempt+1)
			}),
		)
		if errors.Is(err, errLostCAS) {
			return fmt.Errorf("%s after %d attempts: %w", scope, casAttempts, repo.ErrRevisionConflict)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *ProjectService) mutateOnce(ctx context.Context, scope model.ProjectScope, fn func(*model.StateEnvelope) error) (*Snapshot, error) {
	current, err := s.projects.Find(ctx, scope)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(scope, current)
	if err := fn(snap.State); err != nil {
		return nil, err
	}
	state, err := model.EncodeStateEnvelope(snap.State)
	if err != nil {
		return nil, fmt.Errorf("encode state of %s: %w", scope, err)
	}

	now := s.now()
	next := model.ProjectRecord{
		Scope:     scope,
		Revision:  model.NewRevision(),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var expected *string
	if current != nil {
		expected = &current.Revision
		next.CreatedAt = current.CreatedAt
	}
	ok, err := s.projects.SaveIfRevision(ctx, next, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLostCAS
	}
	return snapshotOf(scope, &next), nil
}

// Remove deletes the project under the per-project queue.
func (s *ProjectService) Remove(ctx context.Context, scope model.ProjectScope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.locks.Do(ctx, scope.Key(), "project.remove", func(ctx context.Context) error {
		return s.projects.Remove(ctx, scope)
	})
}
