package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/trace"
)

const sqliteDriverName = "sqlite3_modelgate"

// SQLiteLowerFunc lowercases its TEXT argument with Unicode case folding.
// The builtin LOWER only folds ASCII.
const SQLiteLowerFunc = "utf8_lower"

var registerSQLiteDriver sync.Once

func sqliteDriver() string {
	registerSQLiteDriver.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc(SQLiteLowerFunc, utf8Lower, true)
			},
		})
	})
	return sqliteDriverName
}

// utf8Lower keeps NULL as NULL so comparisons behave like LOWER.
func utf8Lower(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	default:
		return v
	}
}

// NewSQLite opens the embedded database file, creating its directory when needed.
// The pool is limited to a single connection so writers serialize in process.
func NewSQLite(ctx context.Context, cfg SQLiteConfig) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: sqliteDriver(),
		DSN:        buildSQLiteDSN(cfg.Path, cfg.BusyTimeout),
	}), newGormConfig(cfg.Output))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := trace.RegisterGormPlugin(db, "sqlite", cfg.Output); err != nil {
		return nil, fmt.Errorf("failed to register trace plugin: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	log.Infow("sqlite opened", "path", cfg.Path)
	return db, nil
}
