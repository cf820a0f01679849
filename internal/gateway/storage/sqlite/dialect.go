package sqlite

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlrepo"
	"github.com/go-arcade/modelgate/pkg/database"
)

const (
	insertProjectSQL = `INSERT OR IGNORE INTO project_records
	(tenant_id, project_id, revision, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	updateProjectSQL = `UPDATE project_records
	SET revision = ?, state = ?, updated_at = ?
	WHERE tenant_id = ? AND project_id = ? AND revision = ?`
)

type dialect struct{}

func (dialect) Name() string { return Provider }

func (dialect) InsertProjectIfAbsent(tx *gorm.DB, row *sqlrepo.ProjectRow) (bool, error) {
	res := tx.Exec(insertProjectSQL,
		row.TenantID, row.ProjectID, row.Revision, string(row.State), row.CreatedAt, row.UpdatedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (dialect) UpdateProjectIfRevision(tx *gorm.DB, row *sqlrepo.ProjectRow, expected string) (bool, error) {
	res := tx.Exec(updateProjectSQL,
		row.Revision, string(row.State), row.UpdatedAt, row.TenantID, row.ProjectID, expected)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UniqueViolation returns the engine message, e.g.
// "UNIQUE constraint failed: accounts.local_login_id".
func (dialect) UniqueViolation(err error) (string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return "", false
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return se.Error(), true
	}
	return "", false
}

func (dialect) Lower(col string) string { return database.SQLiteLowerFunc + "(" + col + ")" }

func (dialect) NameOrder() string { return "display_name, account_id" }

func (dialect) Primary(db *gorm.DB) *gorm.DB { return db }

func (dialect) Replica(db *gorm.DB) *gorm.DB { return db }
