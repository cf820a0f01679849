package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/pkg/database"
)

type memLedger struct {
	prepared int
	applied  map[string]bool
	order    []string
	failOn   string
}

func (l *memLedger) Prepare(context.Context) error {
	l.prepared++
	if l.applied == nil {
		l.applied = map[string]bool{}
	}
	return nil
}

func (l *memLedger) Applied(context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for k, v := range l.applied {
		out[k] = v
	}
	return out, nil
}

func (l *memLedger) Apply(ctx context.Context, m Migration[*memLedger]) error {
	if m.ID == l.failOn {
		return errors.New("ddl failed")
	}
	if err := m.Up(ctx, l); err != nil {
		return err
	}
	l.applied[m.ID] = true
	return nil
}

func memMigrations() []Migration[*memLedger] {
	var out []Migration[*memLedger]
	for _, id := range IDs {
		id := id
		out = append(out, Migration[*memLedger]{ID: id, Up: func(_ context.Context, l *memLedger) error {
			l.order = append(l.order, id)
			return nil
		}})
	}
	return out
}

func TestLegacyID_Exhaustive(t *testing.T) {
	for i, want := range IDs {
		got, ok := LegacyID(i + 1)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := LegacyID(0)
	assert.False(t, ok)
	_, ok = LegacyID(len(IDs) + 1)
	assert.False(t, ok)
}

func TestRun_AppliesInOrderOnce(t *testing.T) {
	l := &memLedger{}
	done, err := Run(context.Background(), l, memMigrations())
	require.NoError(t, err)
	assert.Equal(t, IDs, done)
	assert.Equal(t, IDs, l.order)

	done, err = Run(context.Background(), l, memMigrations())
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Equal(t, IDs, l.order)
	assert.Equal(t, 2, l.prepared)
}

func TestRun_StopsAtFailure(t *testing.T) {
	l := &memLedger{failOn: WorkspaceApiKeys}
	done, err := Run(context.Background(), l, memMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), WorkspaceApiKeys)
	assert.Equal(t, IDs[:3], done)
	assert.False(t, l.applied[WorkspaceApiKeys])
}

func TestRun_RejectsDuplicateIDs(t *testing.T) {
	ms := memMigrations()
	ms = append(ms, ms[0])
	_, err := Run(context.Background(), &memLedger{}, ms)
	assert.Error(t, err)
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLite(context.Background(), database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func sqlMigrations(created *[]string) []Migration[*gorm.DB] {
	var out []Migration[*gorm.DB]
	for _, id := range IDs {
		id := id
		out = append(out, Migration[*gorm.DB]{ID: id, Up: func(_ context.Context, tx *gorm.DB) error {
			*created = append(*created, id)
			return tx.Exec("CREATE TABLE IF NOT EXISTS t_" + id + " (id TEXT)").Error
		}})
	}
	return out
}

func ledgerIDs(t *testing.T, db *gorm.DB) []string {
	var ids []string
	require.NoError(t, db.Raw("SELECT migration_id FROM schema_migrations ORDER BY migration_id").Scan(&ids).Error)
	return ids
}

func TestGormLedger_FreshAndIdempotent(t *testing.T) {
	db := openSQLite(t)
	var created []string

	done, err := Run(context.Background(), NewGormLedger(db), sqlMigrations(&created))
	require.NoError(t, err)
	assert.Equal(t, IDs, done)
	assert.Equal(t, IDs, ledgerIDs(t, db))

	done, err = Run(context.Background(), NewGormLedger(db), sqlMigrations(&created))
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Len(t, created, len(IDs))
}

func TestGormLedger_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	ms := []Migration[*gorm.DB]{{ID: ProjectRecords, Up: func(_ context.Context, tx *gorm.DB) error {
		if err := tx.Exec("CREATE TABLE half (id TEXT)").Error; err != nil {
			return err
		}
		return errors.New("second statement failed")
	}}}

	_, err := Run(context.Background(), NewGormLedger(db), ms)
	require.Error(t, err)
	assert.Empty(t, ledgerIDs(t, db))
	assert.False(t, db.Migrator().HasTable("half"))
}

func TestGormLedger_BackfillsLegacyLedger(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Exec("CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY, applied_at TIMESTAMP)").Error)
	for v := 1; v <= 3; v++ {
		require.NoError(t, db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)", v).Error)
	}

	var created []string
	done, err := Run(context.Background(), NewGormLedger(db), sqlMigrations(&created))
	require.NoError(t, err)

	assert.Equal(t, IDs[3:], done)
	assert.Equal(t, IDs[3:], created)
	assert.Equal(t, IDs, ledgerIDs(t, db))
	assert.True(t, db.Migrator().HasTable("schema_migrations_legacy"))

	var legacyRows int64
	require.NoError(t, db.Table("schema_migrations_legacy").Count(&legacyRows).Error)
	assert.Equal(t, int64(3), legacyRows)
}

func TestGormLedger_UnknownLegacyVersionFails(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Exec("CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY)").Error)
	require.NoError(t, db.Exec("INSERT INTO schema_migrations (version) VALUES (42)").Error)

	_, err := Run(context.Background(), NewGormLedger(db), sqlMigrations(new([]string)))
	require.Error(t, err)
	assert.False(t, db.Migrator().HasTable("schema_migrations_legacy"))
}
