package sqlrepo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/pkg/id"
)

func (s *Store) UpsertFolderAcl(ctx context.Context, acl model.WorkspaceFolderAcl) (model.WorkspaceFolderAcl, error) {
	if err := required("workspace id", acl.WorkspaceID); err != nil {
		return acl, err
	}
	if acl.EntryID == "" {
		acl.EntryID = id.GetXid()
	}
	acl.UpdatedAt = s.now()
	row := fromFolderAcl(acl)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := requireWorkspace(tx, acl.WorkspaceID); err != nil {
			return err
		}
		return tx.Clauses(upsert([]string{"workspace_id", "entry_id"},
			"scope", "folder_id", "role_ids", "read_effect", "write_effect", "updated_at")).
			Create(&row).Error
	})
	if err != nil {
		return acl, fmt.Errorf("upsert folder acl %s/%s: %w", acl.WorkspaceID, acl.EntryID, err)
	}
	return row.toModel(), nil
}

func (s *Store) ListFolderAcl(ctx context.Context, workspaceID string) ([]model.WorkspaceFolderAcl, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []folderAclRow
	err = s.dialect.Replica(db).Where("workspace_id = ?", workspaceID).Order("entry_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list folder acl of %s: %w", workspaceID, err)
	}
	out := make([]model.WorkspaceFolderAcl, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) RemoveFolderAcl(ctx context.Context, workspaceID, entryID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Where("workspace_id = ? AND entry_id = ?", workspaceID, entryID).Delete(&folderAclRow{}).Error
	if err != nil {
		return fmt.Errorf("remove folder acl %s/%s: %w", workspaceID, entryID, err)
	}
	return nil
}
