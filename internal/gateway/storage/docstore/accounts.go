package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", repo.ErrInvalidArgument, fields[i])
		}
	}
	return nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func samePtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// checkIdentity enforces the uniqueness the SQL backends get from partial indexes.
func (g *aggregate) checkIdentity(a model.Account) error {
	for id, other := range g.Accounts {
		if id == a.AccountID {
			continue
		}
		if samePtr(other.LocalLoginID, a.LocalLoginID) {
			return fmt.Errorf("%w: %s is taken by %s", repo.ErrLocalLoginConflict, *a.LocalLoginID, id)
		}
		if samePtr(other.GithubUserID, a.GithubUserID) {
			return fmt.Errorf("%w: %s is linked to %s", repo.ErrGithubIdentityConflict, *a.GithubUserID, id)
		}
	}
	return nil
}

func (g *aggregate) putAccount(a model.Account, now time.Time) {
	a.SystemRoles = orEmpty(a.SystemRoles)
	a.UpdatedAt = now
	if prev, ok := g.Accounts[a.AccountID]; ok {
		a.CreatedAt = prev.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.CreatedAt = a.CreatedAt.UTC()
	g.Accounts[a.AccountID] = a
}

func (a *Adapter) CreateAccount(ctx context.Context, account model.Account) error {
	if err := required("account id", account.AccountID); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if _, ok := g.Accounts[account.AccountID]; ok {
			return repo.ErrAccountConflict
		}
		if err := g.checkIdentity(account); err != nil {
			return err
		}
		g.putAccount(account, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create account %s: %w", account.AccountID, err)
	}
	return nil
}

func (a *Adapter) UpsertAccount(ctx context.Context, account model.Account) error {
	if err := required("account id", account.AccountID); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if err := g.checkIdentity(account); err != nil {
			return err
		}
		g.putAccount(account, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.AccountID, err)
	}
	return nil
}

func (a *Adapter) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return a.findAccount(ctx, "account", accountID, func(acc model.Account) bool {
		return acc.AccountID == accountID
	})
}

func (a *Adapter) GetAccountByLocalLoginID(ctx context.Context, loginID string) (*model.Account, error) {
	return a.findAccount(ctx, "local login", loginID, func(acc model.Account) bool {
		return acc.LocalLoginID != nil && *acc.LocalLoginID == loginID
	})
}

func (a *Adapter) GetAccountByGithubUserID(ctx context.Context, githubUserID string) (*model.Account, error) {
	return a.findAccount(ctx, "github user", githubUserID, func(acc model.Account) bool {
		return acc.GithubUserID != nil && *acc.GithubUserID == githubUserID
	})
}

func (a *Adapter) findAccount(ctx context.Context, kind, key string, match func(model.Account) bool) (*model.Account, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, acc := range g.Accounts {
		if match(acc) {
			return &acc, nil
		}
	}
	return nil, repo.NotFound(kind, key)
}

func (a *Adapter) ListAccounts(ctx context.Context) ([]model.Account, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Account, 0, len(g.Accounts))
	for _, acc := range g.Accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (a *Adapter) RemoveAccount(ctx context.Context, accountID string) error {
	err := a.mutate(ctx, func(g *aggregate, _ time.Time) error {
		delete(g.Accounts, accountID)
		for _, members := range g.Members {
			delete(members, accountID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove account %s: %w", accountID, err)
	}
	return nil
}

// SearchAccounts filters and pages in memory with the same ordering as the SQL backends.
func (a *Adapter) SearchAccounts(ctx context.Context, query repo.AccountSearchQuery) (repo.AccountSearchPage, error) {
	n, err := query.Normalize()
	if err != nil {
		return repo.AccountSearchPage{}, err
	}
	g, err := a.read(ctx)
	if err != nil {
		return repo.AccountSearchPage{}, err
	}

	var matched []model.Account
	for id, acc := range g.Accounts {
		if n.WorkspaceID != "" {
			if _, ok := g.Members[n.WorkspaceID][id]; !ok {
				continue
			}
		}
		if n.Matches(acc) {
			matched = append(matched, acc)
		}
	}
	repo.SortAccounts(matched, n.Sort)
	return n.Page(matched), nil
}
