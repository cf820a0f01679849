// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package repo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

type SearchField string

const (
	SearchFieldAny          SearchField = "any"
	SearchFieldEmail        SearchField = "email"
	SearchFieldDisplayName  SearchField = "displayName"
	SearchFieldAccountID    SearchField = "accountId"
	SearchFieldLocalLoginID SearchField = "localLoginId"
	SearchFieldGithubLogin  SearchField = "githubLogin"
)

// SearchFields lists the concrete fields "any" expands to.
var SearchFields = []SearchField{
	SearchFieldEmail,
	SearchFieldDisplayName,
	SearchFieldAccountID,
	SearchFieldLocalLoginID,
	SearchFieldGithubLogin,
}

type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchPrefix   MatchMode = "prefix"
	MatchContains MatchMode = "contains"
)

type SearchSort string

const (
	SortByName    SearchSort = "name"
	SortByCreated SearchSort = "created"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

// AccountSearchQuery selects accounts by one field, or any field, case-insensitively.
type AccountSearchQuery struct {
	Text        string
	Field       SearchField
	Mode        MatchMode
	WorkspaceID string
	Sort        SearchSort
	Cursor      string
	Limit       int
}

// AccountSearchPage is one page of results. NextCursor is empty on the last page.
type AccountSearchPage struct {
	Items      []model.Account
	NextCursor string
}

// Normalize fills defaults and validates the query.
// The returned query has Text lowercased and Cursor parsed into Offset.
func (q AccountSearchQuery) Normalize() (NormalizedSearch, error) {
	n := NormalizedSearch{
		Text:        strings.ToLower(strings.TrimSpace(q.Text)),
		Field:       q.Field,
		Mode:        q.Mode,
		WorkspaceID: strings.TrimSpace(q.WorkspaceID),
		Sort:        q.Sort,
		Limit:       q.Limit,
	}
	if n.Field == "" {
		n.Field = SearchFieldAny
	}
	if n.Mode == "" {
		n.Mode = MatchContains
	}
	if n.Sort == "" {
		n.Sort = SortByName
	}

	if n.Field != SearchFieldAny && !containsField(SearchFields, n.Field) {
		return n, fmt.Errorf("%w: unknown field %q", ErrInvalidSearch, q.Field)
	}
	switch n.Mode {
	case MatchExact, MatchPrefix, MatchContains:
	default:
		return n, fmt.Errorf("%w: unknown match mode %q", ErrInvalidSearch, q.Mode)
	}
	switch n.Sort {
	case SortByName, SortByCreated:
	default:
		return n, fmt.Errorf("%w: unknown sort %q", ErrInvalidSearch, q.Sort)
	}

	if c := strings.TrimSpace(q.Cursor); c != "" {
		off, err := strconv.Atoi(c)
		if err != nil || off < 0 {
			return n, fmt.Errorf("%w: bad cursor %q", ErrInvalidSearch, q.Cursor)
		}
		n.Offset = off
	}
	if n.Limit <= 0 {
		n.Limit = DefaultSearchLimit
	}
	if n.Limit > MaxSearchLimit {
		n.Limit = MaxSearchLimit
	}
	return n, nil
}

// NormalizedSearch is a validated AccountSearchQuery.
type NormalizedSearch struct {
	Text        string
	Field       SearchField
	Mode        MatchMode
	WorkspaceID string
	Sort        SearchSort
	Offset      int
	Limit       int
}

// Fields returns the concrete fields to test.
func (n NormalizedSearch) Fields() []SearchField {
	if n.Field == SearchFieldAny {
		return SearchFields
	}
	return []SearchField{n.Field}
}

// Matches evaluates the text filter against an account in memory.
func (n NormalizedSearch) Matches(a model.Account) bool {
	if n.Text == "" {
		return true
	}
	for _, f := range n.Fields() {
		v := strings.ToLower(AccountField(a, f))
		if v == "" {
			continue
		}
		switch n.Mode {
		case MatchExact:
			if v == n.Text {
				return true
			}
		case MatchPrefix:
			if strings.HasPrefix(v, n.Text) {
				return true
			}
		case MatchContains:
			if strings.Contains(v, n.Text) {
				return true
			}
		}
	}
	return false
}

// Page slices sorted results and computes the next cursor.
func (n NormalizedSearch) Page(sorted []model.Account) AccountSearchPage {
	if n.Offset >= len(sorted) {
		return AccountSearchPage{Items: []model.Account{}}
	}
	end := n.Offset + n.Limit
	page := AccountSearchPage{}
	if end < len(sorted) {
		page.NextCursor = strconv.Itoa(end)
	} else {
		end = len(sorted)
	}
	page.Items = append([]model.Account{}, sorted[n.Offset:end]...)
	return page
}

// SortAccounts orders accounts by (display name, id) or (created at, id).
func SortAccounts(accounts []model.Account, by SearchSort) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		if by == SortByCreated {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		} else if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.AccountID < b.AccountID
	})
}

// AccountField reads a searchable field, returning "" for unset optionals.
func AccountField(a model.Account, f SearchField) string {
	switch f {
	case SearchFieldEmail:
		return a.Email
	case SearchFieldDisplayName:
		return a.DisplayName
	case SearchFieldAccountID:
		return a.AccountID
	case SearchFieldLocalLoginID:
		return deref(a.LocalLoginID)
	case SearchFieldGithubLogin:
		return deref(a.GithubLogin)
	default:
		return ""
	}
}

func containsField(fields []SearchField, f SearchField) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
