package sqlrepo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

func (s *Store) UpsertApiKey(ctx context.Context, key model.WorkspaceApiKey) error {
	if err := required("workspace id", key.WorkspaceID, "key id", key.KeyID, "key prefix", key.KeyPrefix); err != nil {
		return err
	}
	now := s.now()
	row := fromApiKey(key)
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if _, err := requireWorkspace(tx, key.WorkspaceID); err != nil {
			return err
		}
		err := tx.Clauses(upsert([]string{"workspace_id", "key_id"},
			"name", "key_prefix", "key_hash", "updated_at", "last_used_at", "expires_at", "revoked_at")).
			Create(&row).Error
		return s.conflict(err)
	})
	if err != nil {
		return fmt.Errorf("upsert api key %s/%s: %w", key.WorkspaceID, key.KeyID, err)
	}
	return nil
}

func (s *Store) GetApiKey(ctx context.Context, workspaceID, keyID string) (*model.WorkspaceApiKey, error) {
	return s.findApiKey(ctx, workspaceID+"/"+keyID, "workspace_id = ? AND key_id = ?", workspaceID, keyID)
}

func (s *Store) FindApiKeyByPrefix(ctx context.Context, prefix string) (*model.WorkspaceApiKey, error) {
	return s.findApiKey(ctx, prefix, "key_prefix = ?", prefix)
}

func (s *Store) findApiKey(ctx context.Context, label, where string, args ...any) (*model.WorkspaceApiKey, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row apiKeyRow
	if err := s.dialect.Primary(db).Where(where, args...).Take(&row).Error; err != nil {
		return nil, notFound(err, "api key", label)
	}
	k := row.toModel()
	return &k, nil
}

func (s *Store) ListApiKeys(ctx context.Context, workspaceID string) ([]model.WorkspaceApiKey, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []apiKeyRow
	err = s.dialect.Replica(db).Where("workspace_id = ?", workspaceID).Order("created_at, key_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list api keys of %s: %w", workspaceID, err)
	}
	out := make([]model.WorkspaceApiKey, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) TouchApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	return s.updateApiKey(ctx, workspaceID, keyID, map[string]any{"last_used_at": at.UTC()})
}

func (s *Store) RevokeApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	return s.updateApiKey(ctx, workspaceID, keyID, map[string]any{"revoked_at": at.UTC(), "updated_at": s.now()})
}

func (s *Store) updateApiKey(ctx context.Context, workspaceID, keyID string, values map[string]any) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&apiKeyRow{}).Where("workspace_id = ? AND key_id = ?", workspaceID, keyID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update api key %s/%s: %w", workspaceID, keyID, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "api key", workspaceID+"/"+keyID)
	}
	return nil
}

func (s *Store) RemoveApiKey(ctx context.Context, workspaceID, keyID string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Where("workspace_id = ? AND key_id = ?", workspaceID, keyID).Delete(&apiKeyRow{}).Error
	if err != nil {
		return fmt.Errorf("remove api key %s/%s: %w", workspaceID, keyID, err)
	}
	return nil
}
