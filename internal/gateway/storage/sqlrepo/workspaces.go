package sqlrepo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

func (s *Store) UpsertWorkspace(ctx context.Context, workspace model.Workspace) error {
	if err := required("workspace id", workspace.WorkspaceID, "tenant id", workspace.TenantID); err != nil {
		return err
	}
	now := s.now()
	row := fromWorkspace(workspace)
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()

	err := s.tx(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(upsert([]string{"workspace_id"}, "tenant_id", "name", "default_member_role_id", "updated_at")).
			Create(&row).Error
		if err != nil {
			return s.conflict(err)
		}
		_, err = s.ensureBuiltinRoles(tx, row.toModel())
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert workspace %s: %w", workspace.WorkspaceID, err)
	}
	return nil
}

// ensureBuiltinRoles writes whatever builtin roles ws lacks and returns the full role set.
func (s *Store) ensureBuiltinRoles(tx *gorm.DB, ws model.Workspace) ([]model.WorkspaceRole, error) {
	roles, err := listRoles(tx, ws.WorkspaceID)
	if err != nil {
		return nil, err
	}
	missing := model.MissingBuiltinRoles(ws, roles, s.now())
	if len(missing) == 0 {
		return roles, nil
	}
	for _, role := range missing {
		row := fromRole(role)
		if err := tx.Clauses(upsert([]string{"workspace_id", "role_id"}, "name", "builtin", "permissions", "updated_at")).
			Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create builtin role %s: %w", role.RoleID, err)
		}
	}

	return listRoles(tx, ws.WorkspaceID)
}

func listRoles(tx *gorm.DB, workspaceID string) ([]model.WorkspaceRole, error) {
	var rows []roleRow
	if err := tx.Where("workspace_id = ?", workspaceID).Order("created_at, role_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]model.WorkspaceRole, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.toModel())
	}
	return roles, nil
}

func (s *Store) GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error) {
	return s.findWorkspace(ctx, "workspace_id = ?", workspaceID)
}

func (s *Store) GetWorkspaceByTenant(ctx context.Context, tenantID string) (*model.Workspace, error) {
	return s.findWorkspace(ctx, "tenant_id = ?", tenantID)
}

func (s *Store) findWorkspace(ctx context.Context, where, arg string) (*model.Workspace, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row workspaceRow
	if err := s.dialect.Primary(db).Where(where, arg).Take(&row).Error; err != nil {
		return nil, notFound(err, "workspace", arg)
	}
	ws := row.toModel()
	return &ws, nil
}

func (s *Store) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []workspaceRow
	if err := s.dialect.Replica(db).Order("created_at, workspace_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaceModels(rows), nil
}

func (s *Store) ListWorkspacesForAccount(ctx context.Context, accountID string) ([]model.Workspace, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []workspaceRow
	err = s.dialect.Replica(db).
		Where("workspace_id IN (SELECT workspace_id FROM workspace_members WHERE account_id = ?)", accountID).
		Order("created_at, workspace_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list workspaces of %s: %w", accountID, err)
	}
	return workspaceModels(rows), nil
}

// RemoveWorkspace deletes the workspace and every row scoped to it in one transaction.
func (s *Store) RemoveWorkspace(ctx context.Context, workspaceID string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		for _, row := range []any{
			&accessMetaRow{}, &memberRow{}, &folderAclRow{}, &apiKeyRow{}, &roleRow{}, &workspaceRow{},
		} {
			if err := tx.Where("workspace_id = ?", workspaceID).Delete(row).Error; err != nil {
				return fmt.Errorf("remove workspace %s: %w", workspaceID, err)
			}
		}
		return nil
	})
}

func workspaceModels(rows []workspaceRow) []model.Workspace {
	out := make([]model.Workspace, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
