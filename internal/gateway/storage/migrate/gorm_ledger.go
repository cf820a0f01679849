package migrate

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/storage/uow"
	"github.com/go-arcade/modelgate/pkg/log"
)

const (
	ledgerTable       = "schema_migrations"
	legacyLedgerTable = "schema_migrations_legacy"

	createLedgerSQL = `CREATE TABLE ` + ledgerTable + ` (
	migration_id VARCHAR(128) PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
)`
)

// GormLedger keeps the ledger in a SQL table. DDL and the ledger row of a
// migration share one transaction.
type GormLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Prepare creates the ledger or upgrades an integer-versioned one.
func (l *GormLedger) Prepare(ctx context.Context) error {
	db := l.db.WithContext(ctx)
	m := db.Migrator()
	if !m.HasTable(ledgerTable) {
		return db.Exec(createLedgerSQL).Error
	}
	if m.HasColumn(ledgerTable, "migration_id") {
		return nil
	}
	if !m.HasColumn(ledgerTable, "version") {
		return fmt.Errorf("table %s has neither migration_id nor version", ledgerTable)
	}
	return l.backfill(ctx)
}

// backfill moves the integer ledger aside and records the stable id of every
// legacy version, all inside one transaction.
func (l *GormLedger) backfill(ctx context.Context) error {
	return uow.Run(ctx, l.db, func(tx *gorm.DB) error {
		var versions []int
		if err := tx.Raw("SELECT version FROM " + ledgerTable + " ORDER BY version").Scan(&versions).Error; err != nil {
			return fmt.Errorf("read legacy ledger: %w", err)
		}
		ids := make([]string, 0, len(versions))
		for _, v := range versions {
			id, ok := LegacyID(v)
			if !ok {
				return fmt.Errorf("legacy ledger holds unknown version %d", v)
			}
			ids = append(ids, id)
		}

		if err := tx.Exec("ALTER TABLE " + ledgerTable + " RENAME TO " + legacyLedgerTable).Error; err != nil {
			return fmt.Errorf("rename legacy ledger: %w", err)
		}
		if err := tx.Exec(createLedgerSQL).Error; err != nil {
			return fmt.Errorf("create ledger: %w", err)
		}
		now := l.now()
		for _, id := range ids {
			if err := tx.Exec("INSERT INTO "+ledgerTable+" (migration_id, applied_at) VALUES (?, ?)", id, now).Error; err != nil {
				return fmt.Errorf("record %s: %w", id, err)
			}
		}
		log.Infow("legacy migration ledger upgraded", "versions", versions)
		return nil
	})
}

func (l *GormLedger) Applied(ctx context.Context) (map[string]bool, error) {
	var ids []string
	if err := l.db.WithContext(ctx).Raw("SELECT migration_id FROM " + ledgerTable).Scan(&ids).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

func (l *GormLedger) Apply(ctx context.Context, m Migration[*gorm.DB]) error {
	return uow.Run(ctx, l.db, func(tx *gorm.DB) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		return tx.Exec("INSERT INTO "+ledgerTable+" (migration_id, applied_at) VALUES (?, ?)", m.ID, l.now()).Error
	})
}
