package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/uow"
)

// Handle returns the adapter's database, opening it on first use.
type Handle func(ctx context.Context) (*gorm.DB, error)

// Store implements repo.ProjectRepository and repo.WorkspaceRepository.
type Store struct {
	handle  Handle
	dialect Dialect
	now     func() time.Time
}

// New returns a Store that reaches the database through handle.
func New(handle Handle, dialect Dialect) *Store {
	return &Store{
		handle:  handle,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

func (s *Store) tx(ctx context.Context, fn uow.Work) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return uow.Run(ctx, db, fn)
}

// conflict maps a unique violation onto the matching domain error.
func (s *Store) conflict(err error) error {
	if err == nil {
		return nil
	}
	detail, ok := s.dialect.UniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(detail, "local_login_id"):
		return fmt.Errorf("%w: %v", repo.ErrLocalLoginConflict, err)
	case strings.Contains(detail, "github_user_id"):
		return fmt.Errorf("%w: %v", repo.ErrGithubIdentityConflict, err)
	case strings.Contains(detail, "tenant_id"), strings.Contains(detail, "workspaces_tenant"):
		return fmt.Errorf("%w: %v", repo.ErrTenantConflict, err)
	case strings.Contains(detail, "key_prefix"):
		return fmt.Errorf("%w: %v", repo.ErrKeyPrefixConflict, err)
	case strings.Contains(detail, "accounts.account_id"), strings.Contains(detail, "accounts_pkey"):
		return fmt.Errorf("%w: %v", repo.ErrAccountConflict, err)
	}
	return err
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.NotFound(kind, id)
	}
	return err
}

func upsert(keys []string, updates ...string) clause.OnConflict {
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	return clause.OnConflict{Columns: cols, DoUpdates: clause.AssignmentColumns(updates)}
}

func requireWorkspace(tx *gorm.DB, workspaceID string) (workspaceRow, error) {
	var row workspaceRow
	err := tx.Where("workspace_id = ?", workspaceID).Take(&row).Error
	return row, notFound(err, "workspace", workspaceID)
}

func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", repo.ErrInvalidArgument, fields[i])
		}
	}
	return nil
}

var (
	_ repo.ProjectRepository   = (*Store)(nil)
	_ repo.WorkspaceRepository = (*Store)(nil)
)
