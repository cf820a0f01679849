package sqlrepo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

var accountUpdates = []string{
	"email", "display_name", "system_roles", "local_login_id", "password_hash",
	"github_user_id", "github_login", "updated_at",
}

func (s *Store) accountRow(a model.Account) accountRow {
	now := s.now()
	row := fromAccount(a)
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return row
}

func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	if err := required("account id", account.AccountID); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	row := s.accountRow(account)
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("create account %s: %w", account.AccountID, s.conflict(err))
	}
	return nil
}

func (s *Store) UpsertAccount(ctx context.Context, account model.Account) error {
	if err := required("account id", account.AccountID); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	row := s.accountRow(account)
	err = db.Clauses(upsert([]string{"account_id"}, accountUpdates...)).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.AccountID, s.conflict(err))
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return s.findAccount(ctx, "account_id = ?", accountID, "account")
}

func (s *Store) GetAccountByLocalLoginID(ctx context.Context, loginID string) (*model.Account, error) {
	return s.findAccount(ctx, "local_login_id = ?", loginID, "local login")
}

func (s *Store) GetAccountByGithubUserID(ctx context.Context, githubUserID string) (*model.Account, error) {
	return s.findAccount(ctx, "github_user_id = ?", githubUserID, "github user")
}

func (s *Store) findAccount(ctx context.Context, where, arg, kind string) (*model.Account, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var row accountRow
	if err := s.dialect.Primary(db).Where(where, arg).Take(&row).Error; err != nil {
		return nil, notFound(err, kind, arg)
	}
	a := row.toModel()
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []accountRow
	if err := s.dialect.Replica(db).Order("account_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) RemoveAccount(ctx context.Context, accountID string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&accessMetaRow{}).Error; err != nil {
			return fmt.Errorf("remove access meta of %s: %w", accountID, err)
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&memberRow{}).Error; err != nil {
			return fmt.Errorf("remove memberships of %s: %w", accountID, err)
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&accountRow{}).Error; err != nil {
			return fmt.Errorf("remove account %s: %w", accountID, err)
		}
		return nil
	})
}
