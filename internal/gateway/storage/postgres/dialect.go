package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlrepo"
	"github.com/go-arcade/modelgate/pkg/database"
)

const (
	uniqueViolation = "23505"

	insertProjectSQL = `INSERT INTO project_records
	(tenant_id, project_id, revision, state, created_at, updated_at)
	VALUES (?, ?, ?, CAST(? AS jsonb), ?, ?)
	ON CONFLICT (tenant_id, project_id) DO NOTHING
	RETURNING revision`

	updateProjectSQL = `UPDATE project_records
	SET revision = ?, state = CAST(? AS jsonb), updated_at = ?
	WHERE tenant_id = ? AND project_id = ? AND revision = ?
	RETURNING revision`
)

type dialect struct {
	name string
}

func (d dialect) Name() string { return d.name }

// InsertProjectIfAbsent relies on RETURNING yielding no row when the insert was skipped.
func (dialect) InsertProjectIfAbsent(tx *gorm.DB, row *sqlrepo.ProjectRow) (bool, error) {
	var revs []string
	err := tx.Raw(insertProjectSQL,
		row.TenantID, row.ProjectID, row.Revision, string(row.State), row.CreatedAt, row.UpdatedAt).
		Scan(&revs).Error
	if err != nil {
		return false, err
	}
	return len(revs) > 0, nil
}

func (dialect) UpdateProjectIfRevision(tx *gorm.DB, row *sqlrepo.ProjectRow, expected string) (bool, error) {
	var revs []string
	err := tx.Raw(updateProjectSQL,
		row.Revision, string(row.State), row.UpdatedAt, row.TenantID, row.ProjectID, expected).
		Scan(&revs).Error
	if err != nil {
		return false, err
	}
	return len(revs) > 0, nil
}

// UniqueViolation returns the violated constraint name, e.g. "ux_accounts_local_login_id".
func (dialect) UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func (dialect) Lower(col string) string { return "LOWER(" + col + ")" }

// NameOrder uses byte order so paging matches the other backends regardless of the database locale.
func (dialect) NameOrder() string { return `display_name COLLATE "C", account_id COLLATE "C"` }

func (dialect) Primary(db *gorm.DB) *gorm.DB { return database.WriteDB(db) }

func (dialect) Replica(db *gorm.DB) *gorm.DB { return database.ReadDB(db) }
