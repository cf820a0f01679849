package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

func (s *Store) Find(ctx context.Context, scope model.ProjectScope) (*model.ProjectRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row ProjectRow
	err = s.dialect.Primary(db).
		Where("tenant_id = ? AND project_id = ?", scope.TenantID, scope.ProjectID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", scope, err)
	}
	rec := toProjectRecord(row)
	return &rec, nil
}

// ListByScopePrefix compares with substr rather than LIKE so the match stays
// case-sensitive on SQLite and needs no escaping.
func (s *Store) ListByScopePrefix(ctx context.Context, scope model.ProjectScope) ([]model.ProjectRecord, error) {
	if strings.TrimSpace(scope.TenantID) == "" {
		return nil, model.ErrInvalidScope
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []ProjectRow
	err = s.dialect.Replica(db).
		Where("tenant_id = ? AND substr(project_id, 1, ?) = ?",
			scope.TenantID, utf8.RuneCountInString(scope.ProjectID), scope.ProjectID).
		Order("project_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list projects %s: %w", scope, err)
	}
	out := make([]model.ProjectRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProjectRecord(r))
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, record model.ProjectRecord) error {
	row, err := s.projectRow(record)
	if err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Clauses(upsert([]string{"tenant_id", "project_id"}, "revision", "state", "updated_at")).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save project %s: %w", record.Scope, err)
	}
	return nil
}

func (s *Store) SaveIfRevision(ctx context.Context, record model.ProjectRecord, expected *string) (bool, error) {
	row, err := s.projectRow(record)
	if err != nil {
		return false, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	db = s.dialect.Primary(db)

	var ok bool
	if expected == nil {
		ok, err = s.dialect.InsertProjectIfAbsent(db, &row)
	} else {
		ok, err = s.dialect.UpdateProjectIfRevision(db, &row, *expected)
	}
	if err != nil {
		return false, fmt.Errorf("conditional save project %s: %w", record.Scope, err)
	}
	return ok, nil
}

func (s *Store) Remove(ctx context.Context, scope model.ProjectScope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	err = db.Where("tenant_id = ? AND project_id = ?", scope.TenantID, scope.ProjectID).
		Delete(&ProjectRow{}).Error
	if err != nil {
		return fmt.Errorf("remove project %s: %w", scope, err)
	}
	return nil
}

func (s *Store) projectRow(record model.ProjectRecord) (ProjectRow, error) {
	if err := record.Scope.Validate(); err != nil {
		return ProjectRow{}, err
	}
	now := s.now()
	row := ProjectRow{
		TenantID:  record.Scope.TenantID,
		ProjectID: record.Scope.ProjectID,
		Revision:  record.Revision,
		State:     datatypes.JSON(record.StateOrEmpty()),
		CreatedAt: record.CreatedAt.UTC(),
		UpdatedAt: now,
	}
	if row.Revision == "" {
		row.Revision = model.NewRevision()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	return row, nil
}
