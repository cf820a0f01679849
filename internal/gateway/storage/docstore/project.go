package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/pkg/log"
)

const projectsCollection = "project_records"

// aggregateScope holds the workspace graph. Callers cannot address it.
var aggregateScope = model.ProjectScope{TenantID: "__modelgate__", ProjectID: "__workspace_rbac__"}

type projectDoc struct {
	TenantID  string          `json:"tenantId"`
	ProjectID string          `json:"projectId"`
	Revision  string          `json:"revision"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (d projectDoc) record() model.ProjectRecord {
	return model.ProjectRecord{
		Scope:     model.ProjectScope{TenantID: d.TenantID, ProjectID: d.ProjectID},
		Revision:  d.Revision,
		State:     d.State,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func projectDocID(scope model.ProjectScope) string {
	sum := sha256.Sum256([]byte(scope.TenantID + "\x00" + scope.ProjectID))
	return "p_" + hex.EncodeToString(sum[:])
}

func lockScope(scope model.ProjectScope) string {
	return "project:" + scope.Key()
}

func checkScope(scope model.ProjectScope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if scope == aggregateScope {
		return fmt.Errorf("%w: %s is reserved", model.ErrInvalidScope, scope)
	}
	return nil
}

func (a *Adapter) Find(ctx context.Context, scope model.ProjectScope) (*model.ProjectRecord, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	sess, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}
	doc, found, err := getProject(ctx, sess, scope)
	if err != nil || !found {
		return nil, err
	}
	rec := doc.record()
	return &rec, nil
}

// ListByScopePrefix filters the tenant's documents in memory; the query API
// has no prefix operator.
func (a *Adapter) ListByScopePrefix(ctx context.Context, scope model.ProjectScope) ([]model.ProjectRecord, error) {
	if strings.TrimSpace(scope.TenantID) == "" {
		return nil, model.ErrInvalidScope
	}
	sess, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := sess.client.Query(ctx, projectsCollection, Query{
		Filters: []Filter{{Field: "tenantId", Op: "==", Value: scope.TenantID}},
	})
	if err != nil {
		return nil, fmt.Errorf("list projects %s: %w", scope, err)
	}
	out := make([]model.ProjectRecord, 0, len(docs))
	for _, d := range docs {
		var doc projectDoc
		if err := sonic.Unmarshal(d.Data, &doc); err != nil {
			return nil, fmt.Errorf("decode project %s: %w", d.ID, err)
		}
		rec := doc.record()
		if rec.Scope == aggregateScope || rec.Scope.TenantID != scope.TenantID ||
			!strings.HasPrefix(rec.Scope.ProjectID, scope.ProjectID) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.ProjectID < out[j].Scope.ProjectID })
	return out, nil
}

func (a *Adapter) Save(ctx context.Context, record model.ProjectRecord) error {
	if err := checkScope(record.Scope); err != nil {
		return err
	}
	sess, err := a.conn(ctx)
	if err != nil {
		return err
	}
	return withLease(ctx, sess, lockScope(record.Scope), func(ctx context.Context) error {
		current, found, err := getProject(ctx, sess, record.Scope)
		if err != nil {
			return err
		}
		doc := a.projectDoc(record)
		if found {
			doc.CreatedAt = current.CreatedAt
		}
		if err := sess.client.Put(ctx, projectsCollection, projectDocID(record.Scope), doc); err != nil {
			return fmt.Errorf("save project %s: %w", record.Scope, err)
		}
		return nil
	})
}

func (a *Adapter) SaveIfRevision(ctx context.Context, record model.ProjectRecord, expected *string) (bool, error) {
	if err := checkScope(record.Scope); err != nil {
		return false, err
	}
	sess, err := a.conn(ctx)
	if err != nil {
		return false, err
	}
	return a.saveIfRevision(ctx, sess, record, expected)
}

// saveIfRevision creates on a nil expectation and otherwise compares and
// writes under the scope's lease.
func (a *Adapter) saveIfRevision(ctx context.Context, sess *session, record model.ProjectRecord, expected *string) (bool, error) {
	if expected == nil {
		return a.createRecord(ctx, sess, record)
	}
	var ok bool
	err := withLease(ctx, sess, lockScope(record.Scope), func(ctx context.Context) error {
		var err error
		ok, err = a.replaceIfRevision(ctx, sess, record, *expected)
		return err
	})
	return ok, err
}

// createRecord relies on the store's 409 for atomicity and needs no lease.
func (a *Adapter) createRecord(ctx context.Context, sess *session, record model.ProjectRecord) (bool, error) {
	err := sess.client.Create(ctx, projectsCollection, projectDocID(record.Scope), a.projectDoc(record))
	if errors.Is(err, errDocumentExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conditional save project %s: %w", record.Scope, err)
	}
	return true, nil
}

// replaceIfRevision must run under the scope's lease.
func (a *Adapter) replaceIfRevision(ctx context.Context, sess *session, record model.ProjectRecord, expected string) (bool, error) {
	current, found, err := getProject(ctx, sess, record.Scope)
	if err != nil || !found || current.Revision != expected {
		return false, err
	}
	doc := a.projectDoc(record)
	doc.CreatedAt = current.CreatedAt
	if err := sess.client.Put(ctx, projectsCollection, projectDocID(record.Scope), doc); err != nil {
		return false, fmt.Errorf("conditional save project %s: %w", record.Scope, err)
	}
	return true, nil
}

func (a *Adapter) Remove(ctx context.Context, scope model.ProjectScope) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	sess, err := a.conn(ctx)
	if err != nil {
		return err
	}
	return withLease(ctx, sess, lockScope(scope), func(ctx context.Context) error {
		if err := sess.client.Delete(ctx, projectsCollection, projectDocID(scope)); err != nil {
			return fmt.Errorf("remove project %s: %w", scope, err)
		}
		return nil
	})
}

func (a *Adapter) projectDoc(record model.ProjectRecord) projectDoc {
	now := a.now()
	doc := projectDoc{
		TenantID:  record.Scope.TenantID,
		ProjectID: record.Scope.ProjectID,
		Revision:  record.Revision,
		State:     record.StateOrEmpty(),
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: now,
	}
	if doc.Revision == "" {
		doc.Revision = model.NewRevision()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func getProject(ctx context.Context, sess *session, scope model.ProjectScope) (projectDoc, bool, error) {
	var doc projectDoc
	found, err := sess.client.Get(ctx, projectsCollection, projectDocID(scope), &doc)
	if err != nil {
		return projectDoc{}, false, fmt.Errorf("find project %s: %w", scope, err)
	}
	return doc, found, nil
}

// withLease runs fn while holding the lease for scope. The release uses a
// context that outlives ctx so a cancelled caller still frees the lock.
func withLease(ctx context.Context, sess *session, scope string, fn func(ctx context.Context) error) error {
	lease, err := sess.locks.Acquire(ctx, scope)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("release lease", "scope", scope, "error", err)
		}
	}()
	return fn(ctx)
}
