package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

func (a *Adapter) UpsertWorkspace(ctx context.Context, workspace model.Workspace) error {
	if err := required("workspace id", workspace.WorkspaceID, "tenant id", workspace.TenantID); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		for id, other := range g.Workspaces {
			if id != workspace.WorkspaceID && other.TenantID == workspace.TenantID {
				return fmt.Errorf("%w: tenant %s belongs to %s", repo.ErrTenantConflict, workspace.TenantID, id)
			}
		}
		ws := workspace
		ws.DefaultMemberRoleID = ws.MemberRole()
		ws.UpdatedAt = now
		if prev, ok := g.Workspaces[ws.WorkspaceID]; ok {
			ws.CreatedBy = prev.CreatedBy
			ws.CreatedAt = prev.CreatedAt
		} else if ws.CreatedAt.IsZero() {
			ws.CreatedAt = now
		}
		ws.CreatedAt = ws.CreatedAt.UTC()
		g.Workspaces[ws.WorkspaceID] = ws
		g.ensureBuiltinRoles(ws, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert workspace %s: %w", workspace.WorkspaceID, err)
	}
	return nil
}

func (a *Adapter) GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := g.workspace(workspaceID)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (a *Adapter) GetWorkspaceByTenant(ctx context.Context, tenantID string) (*model.Workspace, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, ws := range g.Workspaces {
		if ws.TenantID == tenantID {
			return &ws, nil
		}
	}
	return nil, repo.NotFound("workspace", tenantID)
}

func (a *Adapter) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	return a.listWorkspaces(ctx, func(*aggregate, string) bool { return true })
}

func (a *Adapter) ListWorkspacesForAccount(ctx context.Context, accountID string) ([]model.Workspace, error) {
	return a.listWorkspaces(ctx, func(g *aggregate, wsID string) bool {
		_, ok := g.Members[wsID][accountID]
		return ok
	})
}

func (a *Adapter) listWorkspaces(ctx context.Context, keep func(g *aggregate, wsID string) bool) ([]model.Workspace, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Workspace, 0, len(g.Workspaces))
	for id, ws := range g.Workspaces {
		if keep(g, id) {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].WorkspaceID < out[j].WorkspaceID
	})
	return out, nil
}

func (a *Adapter) RemoveWorkspace(ctx context.Context, workspaceID string) error {
	err := a.mutate(ctx, func(g *aggregate, _ time.Time) error {
		g.dropWorkspace(workspaceID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove workspace %s: %w", workspaceID, err)
	}
	return nil
}

func (a *Adapter) UpsertRole(ctx context.Context, role model.WorkspaceRole) error {
	if err := required("workspace id", role.WorkspaceID, "role id", role.RoleID); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if _, err := g.workspace(role.WorkspaceID); err != nil {
			return err
		}
		roles := g.roles(role.WorkspaceID)
		r := role
		r.Permissions = orEmpty(r.Permissions)
		r.UpdatedAt = now
		if prev, ok := roles[r.RoleID]; ok {
			r.CreatedAt = prev.CreatedAt
		} else if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.CreatedAt = r.CreatedAt.UTC()
		roles[r.RoleID] = r
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert role %s/%s: %w", role.WorkspaceID, role.RoleID, err)
	}
	return nil
}

func (a *Adapter) GetRole(ctx context.Context, workspaceID, roleID string) (*model.WorkspaceRole, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := g.Roles[workspaceID][roleID]
	if !ok {
		return nil, repo.NotFound("role", workspaceID+"/"+roleID)
	}
	return &r, nil
}

// ListRoles only takes the aggregate lease when a builtin role has to be written back.
func (a *Adapter) ListRoles(ctx context.Context, workspaceID string) ([]model.WorkspaceRole, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := g.workspace(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list roles of %s: %w", workspaceID, err)
	}
	roles := g.sortedRoles(workspaceID)
	if len(model.MissingBuiltinRoles(ws, roles, a.now())) == 0 {
		return roles, nil
	}

	err = a.mutate(ctx, func(g *aggregate, now time.Time) error {
		ws, err := g.workspace(workspaceID)
		if err != nil {
			return err
		}
		g.ensureBuiltinRoles(ws, now)
		roles = g.sortedRoles(workspaceID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list roles of %s: %w", workspaceID, err)
	}
	return roles, nil
}

// RemoveRole strips the role from members and drops ACL entries naming it in
// the same aggregate write as the role itself.
func (a *Adapter) RemoveRole(ctx context.Context, workspaceID, roleID string) error {
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		for accountID, m := range g.Members[workspaceID] {
			kept, removed := model.WithoutRole(m.RoleIDs, roleID)
			if !removed {
				continue
			}
			m.RoleIDs = kept
			m.UpdatedAt = now
			g.Members[workspaceID][accountID] = m
		}
		for entryID, acl := range g.FolderAcl[workspaceID] {
			if acl.References(roleID) {
				delete(g.FolderAcl[workspaceID], entryID)
			}
		}
		delete(g.Roles[workspaceID], roleID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove role %s/%s: %w", workspaceID, roleID, err)
	}
	return nil
}

func (a *Adapter) UpsertMember(ctx context.Context, member model.WorkspaceMember) error {
	if err := required("workspace id", member.WorkspaceID, "account id", member.AccountID); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if _, err := g.workspace(member.WorkspaceID); err != nil {
			return err
		}
		members := g.members(member.WorkspaceID)
		m := member
		m.RoleIDs = model.NormalizeRoleIDs(m.RoleIDs)
		m.UpdatedAt = now
		if prev, ok := members[m.AccountID]; ok {
			m.JoinedAt = prev.JoinedAt
		} else if m.JoinedAt.IsZero() {
			m.JoinedAt = now
		}
		m.JoinedAt = m.JoinedAt.UTC()
		members[m.AccountID] = m
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert member %s/%s: %w", member.WorkspaceID, member.AccountID, err)
	}
	return nil
}

func (a *Adapter) GetMember(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceMember, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := g.Members[workspaceID][accountID]
	if !ok {
		return nil, repo.NotFound("member", workspaceID+"/"+accountID)
	}
	return &m, nil
}

func (a *Adapter) ListMembers(ctx context.Context, workspaceID string) ([]model.WorkspaceMember, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkspaceMember, 0, len(g.Members[workspaceID]))
	for _, m := range g.Members[workspaceID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}

func (a *Adapter) RemoveMember(ctx context.Context, workspaceID, accountID string) error {
	err := a.mutate(ctx, func(g *aggregate, _ time.Time) error {
		delete(g.Members[workspaceID], accountID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove member %s/%s: %w", workspaceID, accountID, err)
	}
	return nil
}

func (a *Adapter) GetAccessMeta(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceAccessMeta, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	if m, ok := g.Members[workspaceID][accountID]; ok {
		if meta, ok := model.ComputeAccessMeta(m, m.UpdatedAt); ok {
			return &meta, nil
		}
	}
	return nil, repo.NotFound("access meta", workspaceID+"/"+accountID)
}

func (a *Adapter) ListAccessMeta(ctx context.Context, workspaceID string) ([]model.WorkspaceAccessMeta, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	return g.accessMeta(workspaceID), nil
}
