package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/storage/migrate"
	"github.com/go-arcade/modelgate/pkg/log"
)

const ledgerCollection = "schema_migrations"

// ledgerDoc is one applied migration. Documents written before string ids
// existed carry only Version.
type ledgerDoc struct {
	MigrationID string    `json:"migrationId,omitempty"`
	Version     int       `json:"version,omitempty"`
	AppliedAt   time.Time `json:"appliedAt"`
}

// ledger records applied migrations as one document per id. The store cannot
// write a migration and its record atomically, so every step is idempotent
// and the record is written after the step succeeds.
type ledger struct {
	sess *session
	now  func() time.Time
}

func newLedger(sess *session, now func() time.Time) *ledger {
	return &ledger{sess: sess, now: now}
}

func (l *ledger) Prepare(ctx context.Context) error {
	if err := l.sess.client.EnsureCollection(ctx, ledgerCollection); err != nil {
		return err
	}
	docs, err := l.sess.client.Query(ctx, ledgerCollection, Query{})
	if err != nil {
		return fmt.Errorf("read migration ledger: %w", err)
	}
	var upgraded []int
	for _, d := range docs {
		var doc ledgerDoc
		if err := sonic.Unmarshal(d.Data, &doc); err != nil {
			return fmt.Errorf("decode ledger entry %s: %w", d.ID, err)
		}
		if doc.MigrationID != "" {
			continue
		}
		id, ok := migrate.LegacyID(doc.Version)
		if !ok {
			return fmt.Errorf("legacy ledger holds unknown version %d", doc.Version)
		}
		if doc.AppliedAt.IsZero() {
			doc.AppliedAt = l.now()
		}
		if err := l.sess.client.Put(ctx, ledgerCollection, id, ledgerDoc{MigrationID: id, AppliedAt: doc.AppliedAt}); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		if d.ID != id {
			if err := l.sess.client.Delete(ctx, ledgerCollection, d.ID); err != nil {
				return fmt.Errorf("drop legacy ledger entry %s: %w", d.ID, err)
			}
		}
		upgraded = append(upgraded, doc.Version)
	}
	if len(upgraded) > 0 {
		log.Infow("legacy migration ledger upgraded", "versions", upgraded)
	}
	return nil
}

func (l *ledger) Applied(ctx context.Context) (map[string]bool, error) {
	docs, err := l.sess.client.Query(ctx, ledgerCollection, Query{})
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(docs))
	for _, d := range docs {
		var doc ledgerDoc
		if err := sonic.Unmarshal(d.Data, &doc); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", d.ID, err)
		}
		if doc.MigrationID != "" {
			applied[doc.MigrationID] = true
		}
	}
	return applied, nil
}

func (l *ledger) Apply(ctx context.Context, m migrate.Migration[*session]) error {
	if err := m.Up(ctx, l.sess); err != nil {
		return err
	}
	return l.sess.client.Put(ctx, ledgerCollection, m.ID, ledgerDoc{MigrationID: m.ID, AppliedAt: l.now()})
}

func (a *Adapter) migrations() []migrate.Migration[*session] {
	return []migrate.Migration[*session]{
		{ID: migrate.ProjectRecords, Up: ensureCollections(projectsCollection, locksCollection)},
		{ID: migrate.WorkspaceRBAC, Up: a.createAggregate},
		{ID: migrate.WorkspaceAccessMeta, Up: a.backfillAccessMeta},
		{ID: migrate.WorkspaceApiKeys, Up: a.upgradeAggregate},
		{ID: migrate.ServiceSettings, Up: normalizeSettings},
		{ID: migrate.AccountIdentityIndexes, Up: checkAccountIdentities},
	}
}

func ensureCollections(names ...string) func(context.Context, *session) error {
	return func(ctx context.Context, sess *session) error {
		for _, name := range names {
			if err := sess.client.EnsureCollection(ctx, name); err != nil {
				return err
			}
		}
		return nil
	}
}

func (a *Adapter) createAggregate(ctx context.Context, sess *session) error {
	state, err := newAggregate().encode()
	if err != nil {
		return err
	}
	record := model.ProjectRecord{Scope: aggregateScope, Revision: model.NewRevision(), State: state}
	_, err = a.createRecord(ctx, sess, record)
	return err
}

func (a *Adapter) backfillAccessMeta(ctx context.Context, sess *session) error {
	if err := sess.client.EnsureCollection(ctx, accessMetaCollection); err != nil {
		return err
	}
	g, _, err := loadAggregate(ctx, sess)
	if err != nil {
		return err
	}
	for docID, meta := range g.allAccessMeta() {
		if err := sess.client.Put(ctx, accessMetaCollection, docID, meta); err != nil {
			return fmt.Errorf("backfill access meta %s/%s: %w", meta.WorkspaceID, meta.AccountID, err)
		}
	}
	return nil
}

func (a *Adapter) upgradeAggregate(ctx context.Context, sess *session) error {
	return a.mutateWith(ctx, sess, func(g *aggregate, _ time.Time) error {
		if g.Version < aggregateVersion {
			g.Version = aggregateVersion
		}
		return nil
	})
}

// normalizeSettings rewrites a stored settings document in the nested shape.
func normalizeSettings(ctx context.Context, sess *session) error {
	if err := sess.client.EnsureCollection(ctx, settingsCollection); err != nil {
		return err
	}
	raw, found, err := getSettings(ctx, sess)
	if err != nil || !found {
		return err
	}
	return sess.client.Put(ctx, settingsCollection, settingsID, model.NormalizeServiceSettings(raw))
}

var errDuplicateIdentity = errors.New("duplicate account identity")

// checkAccountIdentities refuses to record the identity constraint while the
// stored accounts violate it.
func checkAccountIdentities(ctx context.Context, sess *session) error {
	g, _, err := loadAggregate(ctx, sess)
	if err != nil {
		return err
	}
	for _, acc := range g.Accounts {
		if err := g.checkIdentity(acc); err != nil {
			return fmt.Errorf("%w: account %s: %v", errDuplicateIdentity, acc.AccountID, err)
		}
	}
	return nil
}
