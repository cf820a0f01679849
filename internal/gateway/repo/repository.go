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

// Package repo defines the persistence ports every storage backend implements.
package repo

import (
	"context"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

// ProjectRepository stores revisioned project documents.
type ProjectRepository interface {
	// Find returns nil, nil when no record exists.
	Find(ctx context.Context, scope model.ProjectScope) (*model.ProjectRecord, error)
	// ListByScopePrefix returns the tenant's records whose project id starts with scope.ProjectID.
	ListByScopePrefix(ctx context.Context, scope model.ProjectScope) ([]model.ProjectRecord, error)
	// Save is an unconditional upsert.
	Save(ctx context.Context, record model.ProjectRecord) error
	// SaveIfRevision writes record only if the stored revision equals expected,
	// or expected is nil and nothing is stored. false means another writer won.
	SaveIfRevision(ctx context.Context, record model.ProjectRecord, expected *string) (bool, error)
	Remove(ctx context.Context, scope model.ProjectScope) error
}

// AccountRepository manages global accounts.
type AccountRepository interface {
	// CreateAccount fails with ErrAccountConflict when the id is taken.
	CreateAccount(ctx context.Context, account model.Account) error
	UpsertAccount(ctx context.Context, account model.Account) error
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	GetAccountByLocalLoginID(ctx context.Context, loginID string) (*model.Account, error)
	GetAccountByGithubUserID(ctx context.Context, githubUserID string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	// RemoveAccount also drops the account's memberships and access-meta rows.
	RemoveAccount(ctx context.Context, accountID string) error
	SearchAccounts(ctx context.Context, query AccountSearchQuery) (AccountSearchPage, error)
}

// WorkspaceRepository manages workspaces and everything scoped to one.
// Mutations that change a member's roles maintain the access-meta projection.
type WorkspaceRepository interface {
	AccountRepository

	// UpsertWorkspace also ensures the builtin roles exist.
	UpsertWorkspace(ctx context.Context, workspace model.Workspace) error
	GetWorkspace(ctx context.Context, workspaceID string) (*model.Workspace, error)
	GetWorkspaceByTenant(ctx context.Context, tenantID string) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	ListWorkspacesForAccount(ctx context.Context, accountID string) ([]model.Workspace, error)
	// RemoveWorkspace cascades to roles, members, folder ACL, API keys and access-meta.
	RemoveWorkspace(ctx context.Context, workspaceID string) error

	UpsertRole(ctx context.Context, role model.WorkspaceRole) error
	GetRole(ctx context.Context, workspaceID, roleID string) (*model.WorkspaceRole, error)
	// ListRoles recreates missing builtin roles before listing.
	ListRoles(ctx context.Context, workspaceID string) ([]model.WorkspaceRole, error)
	// RemoveRole strips the role from members and deletes ACL entries naming it.
	RemoveRole(ctx context.Context, workspaceID, roleID string) error

	UpsertMember(ctx context.Context, member model.WorkspaceMember) error
	GetMember(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceMember, error)
	ListMembers(ctx context.Context, workspaceID string) ([]model.WorkspaceMember, error)
	RemoveMember(ctx context.Context, workspaceID, accountID string) error

	GetAccessMeta(ctx context.Context, workspaceID, accountID string) (*model.WorkspaceAccessMeta, error)
	ListAccessMeta(ctx context.Context, workspaceID string) ([]model.WorkspaceAccessMeta, error)

	// UpsertFolderAcl returns the stored entry, with EntryID filled when it was empty.
	UpsertFolderAcl(ctx context.Context, acl model.WorkspaceFolderAcl) (model.WorkspaceFolderAcl, error)
	ListFolderAcl(ctx context.Context, workspaceID string) ([]model.WorkspaceFolderAcl, error)
	RemoveFolderAcl(ctx context.Context, workspaceID, entryID string) error

	UpsertApiKey(ctx context.Context, key model.WorkspaceApiKey) error
	GetApiKey(ctx context.Context, workspaceID, keyID string) (*model.WorkspaceApiKey, error)
	FindApiKeyByPrefix(ctx context.Context, prefix string) (*model.WorkspaceApiKey, error)
	ListApiKeys(ctx context.Context, workspaceID string) ([]model.WorkspaceApiKey, error)
	TouchApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error
	RevokeApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error
	RemoveApiKey(ctx context.Context, workspaceID, keyID string) error

	GetServiceSettings(ctx context.Context) (model.ServiceSettings, error)
	// SaveServiceSettings normalizes before writing and returns what was stored.
	SaveServiceSettings(ctx context.Context, settings model.ServiceSettings) (model.ServiceSettings, error)
}

// Backend is one storage provider implementing both ports.
type Backend interface {
	ProjectRepository
	WorkspaceRepository

	// Provider names the backend, e.g. "sqlite".
	Provider() string
	// Ping opens the handle when needed, applies pending migrations and checks connectivity.
	Ping(ctx context.Context) error
	// Migrate applies pending migrations and returns the ids applied by this call.
	Migrate(ctx context.Context) ([]string, error)
	Close() error
}
