package uow_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/storage/uow"
	"github.com/go-arcade/modelgate/pkg/database"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLite(context.Background(), database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "uow.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.Exec("CREATE TABLE items (id TEXT PRIMARY KEY)").Error)
	return db
}

func count(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Table("items").Count(&n).Error)
	return n
}

func TestRun_Commits(t *testing.T) {
	db := openDB(t)
	err := uow.Run(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (id) VALUES (?)", "a").Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO items (id) VALUES (?)", "b").Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, db))
}

func TestRun_RollsBackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")
	err := uow.Run(context.Background(), db, func(tx *gorm.DB) error {
		require.NoError(t, tx.Exec("INSERT INTO items (id) VALUES (?)", "a").Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), count(t, db))
}

func TestRun_RollsBackOnPanic(t *testing.T) {
	db := openDB(t)
	assert.Panics(t, func() {
		_ = uow.Run(context.Background(), db, func(tx *gorm.DB) error {
			require.NoError(t, tx.Exec("INSERT INTO items (id) VALUES (?)", "a").Error)
			panic("boom")
		})
	})
	assert.Equal(t, int64(0), count(t, db))
}
