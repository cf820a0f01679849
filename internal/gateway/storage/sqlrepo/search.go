package sqlrepo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

var searchColumns = map[repo.SearchField]string{
	repo.SearchFieldEmail:        "email",
	repo.SearchFieldDisplayName:  "display_name",
	repo.SearchFieldAccountID:    "account_id",
	repo.SearchFieldLocalLoginID: "local_login_id",
	repo.SearchFieldGithubLogin:  "github_login",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchAccounts(ctx context.Context, query repo.AccountSearchQuery) (repo.AccountSearchPage, error) {
	n, err := query.Normalize()
	if err != nil {
		return repo.AccountSearchPage{}, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return repo.AccountSearchPage{}, err
	}

	q := s.dialect.Replica(db).Model(&accountRow{})
	if n.WorkspaceID != "" {
		q = q.Where("account_id IN (SELECT account_id FROM workspace_members WHERE workspace_id = ?)", n.WorkspaceID)
	}
	if n.Text != "" {
		var (
			conds []string
			args  []any
		)
		for _, f := range n.Fields() {
			col := s.dialect.Lower(searchColumns[f])
			switch n.Mode {
			case repo.MatchExact:
				conds = append(conds, fmt.Sprintf("%s = ?", col))
				args = append(args, n.Text)
			case repo.MatchPrefix:
				conds = append(conds, fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col))
				args = append(args, likeEscaper.Replace(n.Text)+"%")
			default:
				conds = append(conds, fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col))
				args = append(args, "%"+likeEscaper.Replace(n.Text)+"%")
			}
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	order := s.dialect.NameOrder()
	if n.Sort == repo.SortByCreated {
		order = "created_at, account_id"
	}

	var rows []accountRow
	if err := q.Order(order).Offset(n.Offset).Limit(n.Limit + 1).Find(&rows).Error; err != nil {
		return repo.AccountSearchPage{}, fmt.Errorf("search accounts: %w", err)
	}

	page := repo.AccountSearchPage{Items: make([]model.Account, 0, len(rows))}
	if len(rows) > n.Limit {
		rows = rows[:n.Limit]
		page.NextCursor = strconv.Itoa(n.Offset + n.Limit)
	}
	for _, r := range rows {
		page.Items = append(page.Items, r.toModel())
	}
	return page, nil
}
