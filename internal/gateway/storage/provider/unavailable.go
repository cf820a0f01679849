package provider

import (
	"context"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

// Unavailable is a backend that can never serve. Every call fails with the
// same *repo.UnavailableError.
type Unavailable struct {
	err *repo.UnavailableError
}

var _ repo.Backend = (*Unavailable)(nil)

// NewUnavailable returns a permanently unready backend. An empty provider
// is reported as "unknown".
func NewUnavailable(provider, reason string, cause error) *Unavailable {
	if provider == "" {
		provider = "unknown"
	}
	return &Unavailable{err: repo.NewUnavailable(provider, reason, cause)}
}

func (u *Unavailable) Provider() string { return u.err.Provider }

func (u *Unavailable) Ping(context.Context) error { return u.err }

func (u *Unavailable) Migrate(context.Context) ([]string, error) { return nil, u.err }

func (u *Unavailable) Close() error { return nil }

func (u *Unavailable) Find(context.Context, model.ProjectScope) (*model.ProjectRecord, error) {
	return nil, u.err
}

func (u *Unavailable) ListByScopePrefix(context.Context, model.ProjectScope) ([]model.ProjectRecord, error) {
	return nil, u.err
}

func (u *Unavailable) Save(context.Context, model.ProjectRecord) error { return u.err }

func (u *Unavailable) SaveIfRevision(context.Context, model.ProjectRecord, *string) (bool, error) {
	return false, u.err
}

func (u *Unavailable) Remove(context.Context, model.ProjectScope) error { return u.err }

func (u *Unavailable) CreateAccount(context.Context, model.Account) error { return u.err }

func (u *Unavailable) UpsertAccount(context.Context, model.Account) error { return u.err }

func (u *Unavailable) GetAccount(context.Context, string) (*model.Account, error) { return nil, u.err }

func (u *Unavailable) GetAccountByLocalLoginID(context.Context, string) (*model.Account, error) {
	return nil, u.err
}

func (u *Unavailable) GetAccountByGithubUserID(context.Context, string) (*model.Account, error) {
	return nil, u.err
}

func (u *Unavailable) ListAccounts(context.Context) ([]model.Account, error) { return nil, u.err }

func (u *Unavailable) RemoveAccount(context.Context, string) error { return u.err }

func (u *Unavailable) SearchAccounts(context.Context, repo.AccountSearchQuery) (repo.AccountSearchPage, error) {
	return repo.AccountSearchPage{}, u.err
}

func (u *Unavailable) UpsertWorkspace(context.Context, model.Workspace) error { return u.err }

func (u *Unavailable) GetWorkspace(context.Context, string) (*model.Workspace, error) {
	return nil, u.err
}

func (u *Unavailable) GetWorkspaceByTenant(context.Context, string) (*model.Workspace, error) {
	return nil, u.err
}

func (u *Unavailable) ListWorkspaces(context.Context) ([]model.Workspace, error) { return nil, u.err }

func (u *Unavailable) ListWorkspacesForAccount(context.Context, string) ([]model.Workspace, error) {
	return nil, u.err
}

func (u *Unavailable) RemoveWorkspace(context.Context, string) error { return u.err }

func (u *Unavailable) UpsertRole(context.Context, model.WorkspaceRole) error { return u.err }

func (u *Unavailable) GetRole(context.Context, string, string) (*model.WorkspaceRole, error) {
	return nil, u.err
}

func (u *Unavailable) ListRoles(context.Context, string) ([]model.WorkspaceRole, error) {
	return nil, u.err
}

func (u *Unavailable) RemoveRole(context.Context, string, string) error { return u.err }

func (u *Unavailable) UpsertMember(context.Context, model.WorkspaceMember) error { return u.err }

func (u *Unavailable) GetMember(context.Context, string, string) (*model.WorkspaceMember, error) {
	return nil, u.err
}

func (u *Unavailable) ListMembers(context.Context, string) ([]model.WorkspaceMember, error) {
	return nil, u.err
}

func (u *Unavailable) RemoveMember(context.Context, string, string) error { return u.err }

func (u *Unavailable) GetAccessMeta(context.Context, string, string) (*model.WorkspaceAccessMeta, error) {
	return nil, u.err
}

func (u *Unavailable) ListAccessMeta(context.Context, string) ([]model.WorkspaceAccessMeta, error) {
	return nil, u.err
}

func (u *Unavailable) UpsertFolderAcl(context.Context, model.WorkspaceFolderAcl) (model.WorkspaceFolderAcl, error) {
	return model.WorkspaceFolderAcl{}, u.err
}

func (u *Unavailable) ListFolderAcl(context.Context, string) ([]model.WorkspaceFolderAcl, error) {
	return nil, u.err
}

func (u *Unavailable) RemoveFolderAcl(context.Context, string, string) error { return u.err }

func (u *Unavailable) UpsertApiKey(context.Context, model.WorkspaceApiKey) error { return u.err }

func (u *Unavailable) GetApiKey(context.Context, string, string) (*model.WorkspaceApiKey, error) {
	return nil, u.err
}

func (u *Unavailable) FindApiKeyByPrefix(context.Context, string) (*model.WorkspaceApiKey, error) {
	return nil, u.err
}

func (u *Unavailable) ListApiKeys(context.Context, string) ([]model.WorkspaceApiKey, error) {
	return nil, u.err
}

func (u *Unavailable) TouchApiKey(context.Context, string, string, time.Time) error { return u.err }

func (u *Unavailable) RevokeApiKey(context.Context, string, string, time.Time) error { return u.err }

func (u *Unavailable) RemoveApiKey(context.Context, string, string) error { return u.err }

func (u *Unavailable) GetServiceSettings(context.Context) (model.ServiceSettings, error) {
	return model.ServiceSettings{}, u.err
}

func (u *Unavailable) SaveServiceSettings(context.Context, model.ServiceSettings) (model.ServiceSettings, error) {
	return model.ServiceSettings{}, u.err
}
