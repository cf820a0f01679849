package sqlrepo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

func (s *Store) UpsertMember(ctx context.Context, member model.WorkspaceMember) error {
	if err := required("workspace id", member.WorkspaceID, "account id", member.AccountID); err != nil {
		return err
	}
	now := s.now()
	member.RoleIDs = model.NormalizeRoleIDs(member.RoleIDs)
	member.UpdatedAt = now
	if member.JoinedAt.IsZero() {
		member.JoinedAt = now
	}
	row := memberRow{
		WorkspaceID: member.WorkspaceID,
		AccountID:   member.AccountID,
		RoleIDs:     strs(member.RoleIDs),
		JoinedAt:    member.JoinedAt.UTC(),
		UpdatedAt:   now,
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := requireWorkspace(tx, member.WorkspaceID); err != nil {
			return err
		}
		err := tx.Clauses(upsert([]string{"workspace_id", "account_id"}, "role_ids", "updated_at")).
			Create(&row).Error
		if err != nil {
			return err
		}
		return s.syncAccessMeta(tx, member)
	})
	if err != nil {
		return fmt.Errorf("upsert member %s/%s: %w", member.WorkspaceID, member.AccountID, err)
	}
	return nil
}

// syncAccessMeta rewrites the projection row for member, deleting it when no roles remain.
func (s *Store) syncAccessMeta(tx *gorm.DB, member model.WorkspaceMember) error {
	meta, ok := model.ComputeAccessMeta(member, s.now())
	if !ok {
		return tx.Where("workspace_id = ? AND account_id = ?", member.WorkspaceID, member.AccountID).
			Delete(&accessMetaRow{}).Error
	}
	row := accessMetaRow{
		WorkspaceID: meta.WorkspaceID,
		AccountID:   meta.AccountID,
		RoleIDs:     strs(meta.RoleIDs),
		RoleHash:    meta.RoleHash,
		UpdatedAt:   meta.UpdatedAt,
	}
	return tx.Clauses(upsert([]string{"workspace_id", "account_id"}, "role_ids", "role_hash", "updated_at")).
		Create(&row).Error
}

func (s *Store) GetMember(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceMember, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row memberRow
	err = s.dialect.Primary(db).Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).Take(&row).Error
	if err != nil {
		return nil, notFound(err, "member", workspaceID+"/"+accountID)
	}
	m := row.toModel()
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]model.WorkspaceMember, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []memberRow
	err = s.dialect.Replica(db).Where("workspace_id = ?", workspaceID).Order("joined_at, account_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", workspaceID, err)
	}
	out := make([]model.WorkspaceMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) RemoveMember(ctx context.Context, workspaceID, accountID string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		where := "workspace_id = ? AND account_id = ?"
		if err := tx.Where(where, workspaceID, accountID).Delete(&accessMetaRow{}).Error; err != nil {
			return fmt.Errorf("remove access meta %s/%s: %w", workspaceID, accountID, err)
		}
		if err := tx.Where(where, workspaceID, accountID).Delete(&memberRow{}).Error; err != nil {
			return fmt.Errorf("remove member %s/%s: %w", workspaceID, accountID, err)
		}
		return nil
	})
}

func (s *Store) GetAccessMeta(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceAccessMeta, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row accessMetaRow
	err = s.dialect.Primary(db).Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).Take(&row).Error
	if err != nil {
		return nil, notFound(err, "access meta", workspaceID+"/"+accountID)
	}
	m := row.toModel()
	return &m, nil
}

func (s *Store) ListAccessMeta(ctx context.Context, workspaceID string) ([]model.WorkspaceAccessMeta, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []accessMetaRow
	err = s.dialect.Replica(db).Where("workspace_id = ?", workspaceID).Order("account_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list access meta of %s: %w", workspaceID, err)
	}
	out := make([]model.WorkspaceAccessMeta, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
