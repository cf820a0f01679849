package sqlrepo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

func (s *Store) UpsertRole(ctx context.Context, role model.WorkspaceRole) error {
	if err := required("workspace id", role.WorkspaceID, "role id", role.RoleID); err != nil {
		return err
	}
	now := s.now()
	row := fromRole(role)
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()

	return s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := requireWorkspace(tx, role.WorkspaceID); err != nil {
			return err
		}
		err := tx.Clauses(upsert([]string{"workspace_id", "role_id"}, "name", "builtin", "permissions", "updated_at")).
			Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert role %s/%s: %w", role.WorkspaceID, role.RoleID, err)
		}
		return nil
	})
}

func (s *Store) GetRole(ctx context.Context, workspaceID, roleID string) (*model.WorkspaceRole, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row roleRow
	err = s.dialect.Primary(db).Where("workspace_id = ? AND role_id = ?", workspaceID, roleID).Take(&row).Error
	if err != nil {
		return nil, notFound(err, "role", workspaceID+"/"+roleID)
	}
	r := row.toModel()
	return &r, nil
}

// ListRoles writes back any builtin role that has gone missing.
func (s *Store) ListRoles(ctx context.Context, workspaceID string) ([]model.WorkspaceRole, error) {
	var roles []model.WorkspaceRole
	err := s.tx(ctx, func(tx *gorm.DB) error {
		ws, err := requireWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}
		roles, err = s.ensureBuiltinRoles(tx, ws.toModel())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list roles of %s: %w", workspaceID, err)
	}
	return roles, nil
}

// RemoveRole strips roleID from every member and drops ACL entries naming it.
// The affected rows are read before the write transaction opens, so a member
// updated concurrently in between is overwritten with the earlier role set.
func (s *Store) RemoveRole(ctx context.Context, workspaceID, roleID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	var members []memberRow
	if err := s.dialect.Primary(db).Where("workspace_id = ?", workspaceID).Find(&members).Error; err != nil {
		return fmt.Errorf("remove role %s/%s: %w", workspaceID, roleID, err)
	}
	var acl []folderAclRow
	if err := s.dialect.Primary(db).Where("workspace_id = ?", workspaceID).Find(&acl).Error; err != nil {
		return fmt.Errorf("remove role %s/%s: %w", workspaceID, roleID, err)
	}

	now := s.now()
	var updates []model.WorkspaceMember
	for _, m := range members {
		member := m.toModel()
		kept, removed := model.WithoutRole(member.RoleIDs, roleID)
		if !removed {
			continue
		}
		member.RoleIDs = kept
		member.UpdatedAt = now
		updates = append(updates, member)
	}
	var staleEntries []string
	for _, a := range acl {
		if a.toModel().References(roleID) {
			staleEntries = append(staleEntries, a.EntryID)
		}
	}

	err = s.tx(ctx, func(tx *gorm.DB) error {
		for _, m := range updates {
			err := tx.Model(&memberRow{}).
				Where("workspace_id = ? AND account_id = ?", m.WorkspaceID, m.AccountID).
				Updates(map[string]any{"role_ids": strs(m.RoleIDs), "updated_at": now}).Error
			if err != nil {
				return err
			}
			if err := s.syncAccessMeta(tx, m); err != nil {
				return err
			}
		}
		if len(staleEntries) > 0 {
			err := tx.Where("workspace_id = ? AND entry_id IN ?", workspaceID, staleEntries).
				Delete(&folderAclRow{}).Error
			if err != nil {
				return err
			}
		}
		return tx.Where("workspace_id = ? AND role_id = ?", workspaceID, roleID).Delete(&roleRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("remove role %s/%s: %w", workspaceID, roleID, err)
	}
	return nil
}
