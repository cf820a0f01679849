package docstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/retry"
)

const (
	accessMetaCollection = "workspace_access_meta"

	// aggregateVersion 2 added api keys.
	aggregateVersion = 2

	mutateAttempts = 5
)

var errAggregateConflict = errors.New("workspace aggregate changed underneath the mutation")

// aggregate is the whole workspace graph, stored as the state of one record.
// Per-workspace maps are keyed by workspace id, then by the entity's own id.
type aggregate struct {
	Version    int                                            `json:"version"`
	Accounts   map[string]model.Account                       `json:"accounts"`
	Workspaces map[string]model.Workspace                     `json:"workspaces"`
	Roles      map[string]map[string]model.WorkspaceRole      `json:"roles"`
	Members    map[string]map[string]model.WorkspaceMember    `json:"members"`
	FolderAcl  map[string]map[string]model.WorkspaceFolderAcl `json:"folderAcl"`
	ApiKeys    map[string]map[string]model.WorkspaceApiKey    `json:"apiKeys"`
}

func newAggregate() *aggregate {
	g := &aggregate{Version: aggregateVersion}
	g.fill()
	return g
}

func (g *aggregate) fill() {
	if g.Accounts == nil {
		g.Accounts = map[string]model.Account{}
	}
	if g.Workspaces == nil {
		g.Workspaces = map[string]model.Workspace{}
	}
	if g.Roles == nil {
		g.Roles = map[string]map[string]model.WorkspaceRole{}
	}
	if g.Members == nil {
		g.Members = map[string]map[string]model.WorkspaceMember{}
	}
	if g.FolderAcl == nil {
		g.FolderAcl = map[string]map[string]model.WorkspaceFolderAcl{}
	}
	if g.ApiKeys == nil {
		g.ApiKeys = map[string]map[string]model.WorkspaceApiKey{}
	}
}

func decodeAggregate(raw []byte) (*aggregate, error) {
	g := &aggregate{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := sonic.Unmarshal(raw, g); err != nil {
			return nil, fmt.Errorf("decode workspace aggregate: %w", err)
		}
	}
	if g.Version == 0 {
		g.Version = 1
	}
	g.fill()
	return g, nil
}

func (g *aggregate) encode() ([]byte, error) {
	return sonic.Marshal(g)
}

func (g *aggregate) clone() (*aggregate, error) {
	raw, err := g.encode()
	if err != nil {
		return nil, err
	}
	return decodeAggregate(raw)
}

func (g *aggregate) workspace(id string) (model.Workspace, error) {
	ws, ok := g.Workspaces[id]
	if !ok {
		return model.Workspace{}, repo.NotFound("workspace", id)
	}
	return ws, nil
}

func (g *aggregate) roles(wsID string) map[string]model.WorkspaceRole {
	m, ok := g.Roles[wsID]
	if !ok {
		m = map[string]model.WorkspaceRole{}
		g.Roles[wsID] = m
	}
	return m
}

func (g *aggregate) members(wsID string) map[string]model.WorkspaceMember {
	m, ok := g.Members[wsID]
	if !ok {
		m = map[string]model.WorkspaceMember{}
		g.Members[wsID] = m
	}
	return m
}

func (g *aggregate) folderAcl(wsID string) map[string]model.WorkspaceFolderAcl {
	m, ok := g.FolderAcl[wsID]
	if !ok {
		m = map[string]model.WorkspaceFolderAcl{}
		g.FolderAcl[wsID] = m
	}
	return m
}

func (g *aggregate) apiKeys(wsID string) map[string]model.WorkspaceApiKey {
	m, ok := g.ApiKeys[wsID]
	if !ok {
		m = map[string]model.WorkspaceApiKey{}
		g.ApiKeys[wsID] = m
	}
	return m
}

func (g *aggregate) dropWorkspace(wsID string) {
	delete(g.Workspaces, wsID)
	delete(g.Roles, wsID)
	delete(g.Members, wsID)
	delete(g.FolderAcl, wsID)
	delete(g.ApiKeys, wsID)
}

// sortedRoles orders like the SQL backends: created_at, role_id.
func (g *aggregate) sortedRoles(wsID string) []model.WorkspaceRole {
	out := make([]model.WorkspaceRole, 0, len(g.Roles[wsID]))
	for _, r := range g.Roles[wsID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RoleID < out[j].RoleID
	})
	return out
}

// ensureBuiltinRoles adds whatever builtin roles ws lacks and reports whether it added any.
func (g *aggregate) ensureBuiltinRoles(ws model.Workspace, now time.Time) bool {
	missing := model.MissingBuiltinRoles(ws, g.sortedRoles(ws.WorkspaceID), now)
	roles := g.roles(ws.WorkspaceID)
	for _, r := range missing {
		roles[r.RoleID] = r
	}
	return len(missing) > 0
}

// accessMeta derives the projection for one workspace, ordered by account id.
func (g *aggregate) accessMeta(wsID string) []model.WorkspaceAccessMeta {
	out := make([]model.WorkspaceAccessMeta, 0, len(g.Members[wsID]))
	for _, m := range g.Members[wsID] {
		if meta, ok := model.ComputeAccessMeta(m, m.UpdatedAt); ok {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

func (g *aggregate) allAccessMeta() map[string]model.WorkspaceAccessMeta {
	out := map[string]model.WorkspaceAccessMeta{}
	for wsID := range g.Members {
		for _, meta := range g.accessMeta(wsID) {
			out[accessMetaDocID(meta.WorkspaceID, meta.AccountID)] = meta
		}
	}
	return out
}

func accessMetaDocID(workspaceID, accountID string) string {
	sum := sha256.Sum256([]byte(workspaceID + "\x00" + accountID))
	return "m_" + hex.EncodeToString(sum[:])[:40]
}

// loadAggregate returns the stored graph and its revision, or an empty graph
// and a nil revision when nothing is stored yet.
func loadAggregate(ctx context.Context, sess *session) (*aggregate, *string, error) {
	doc, found, err := getProject(ctx, sess, aggregateScope)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return newAggregate(), nil, nil
	}
	g, err := decodeAggregate(doc.State)
	if err != nil {
		return nil, nil, err
	}
	rev := doc.Revision
	return g, &rev, nil
}

func (a *Adapter) read(ctx context.Context) (*aggregate, error) {
	sess, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}
	g, _, err := loadAggregate(ctx, sess)
	return g, err
}

func (a *Adapter) mutate(ctx context.Context, fn func(g *aggregate, now time.Time) error) error {
	sess, err := a.conn(ctx)
	if err != nil {
		return err
	}
	return a.mutateWith(ctx, sess, fn)
}

// mutateWith runs read, clone, apply and compare-and-write under the
// aggregate's lease, repeating the whole cycle when the write loses. Errors
// from fn end the loop unchanged.
func (a *Adapter) mutateWith(ctx context.Context, sess *session, fn func(g *aggregate, now time.Time) error) error {
	err := retry.Do(ctx, func(ctx context.Context) error {
		return withLease(ctx, sess, lockScope(aggregateScope), func(ctx context.Context) error {
			return a.mutateOnce(ctx, sess, fn)
		})
	},
		retry.WithMaxAttempts(mutateAttempts),
		retry.WithBackoff(retry.Linear(25*time.Millisecond, 200*time.Millisecond)),
		retry.WithJitter(retry.FullJitter),
		retry.WithRetryIf(retry.On(errAggregateConflict)),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Debugw("retrying workspace aggregate mutation", "attempt", attempt+1, "error", err)
		}),
	)
	if errors.Is(err, errAggregateConflict) {
		return fmt.Errorf("%w: gave up after %d attempts", repo.ErrAggregateContention, mutateAttempts)
	}
	return err
}

func (a *Adapter) mutateOnce(ctx context.Context, sess *session, fn func(g *aggregate, now time.Time) error) error {
	current, rev, err := loadAggregate(ctx, sess)
	if err != nil {
		return err
	}
	before, err := current.encode()
	if err != nil {
		return err
	}
	next, err := current.clone()
	if err != nil {
		return err
	}
	if err := fn(next, a.now()); err != nil {
		return err
	}
	after, err := next.encode()
	if err != nil {
		return err
	}
	if bytes.Equal(before, after) {
		return nil
	}

	record := model.ProjectRecord{Scope: aggregateScope, Revision: model.NewRevision(), State: after}
	var ok bool
	if rev == nil {
		ok, err = a.createRecord(ctx, sess, record)
	} else {
		ok, err = a.replaceIfRevision(ctx, sess, record, *rev)
	}
	a.metrics.ObserveCAS(Provider, ok, err)
	if err != nil {
		return err
	}
	if !ok {
		return errAggregateConflict
	}
	a.writeAccessMeta(ctx, sess, current, next)
	return nil
}

// writeAccessMeta stores the projection rows that changed between before and
// after. Readers derive the projection from the aggregate, so a failure here
// is logged and left for the next mutation of the same row.
func (a *Adapter) writeAccessMeta(ctx context.Context, sess *session, before, after *aggregate) {
	old, cur := before.allAccessMeta(), after.allAccessMeta()
	for docID, meta := range cur {
		if prev, ok := old[docID]; ok && prev.RoleHash == meta.RoleHash {
			continue
		}
		if err := sess.client.Put(ctx, accessMetaCollection, docID, meta); err != nil {
			log.Warnw("write access meta", "workspace", meta.WorkspaceID, "account", meta.AccountID, "error", err)
		}
	}
	for docID, meta := range old {
		if _, ok := cur[docID]; ok {
			continue
		}
		if err := sess.client.Delete(ctx, accessMetaCollection, docID); err != nil {
			log.Warnw("delete access meta", "workspace", meta.WorkspaceID, "account", meta.AccountID, "error", err)
		}
	}
}
