package instrument

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

func (b *Backend) CreateAccount(ctx context.Context, account model.Account) (err error) {
	ctx, done := b.start(ctx, "CreateAccount", accountAttr(account.AccountID))
	defer func() { done(err) }()
	return b.next.CreateAccount(ctx, account)
}

func (b *Backend) UpsertAccount(ctx context.Context, account model.Account) (err error) {
	ctx, done := b.start(ctx, "UpsertAccount", accountAttr(account.AccountID))
	defer func() { done(err) }()
	return b.next.UpsertAccount(ctx, account)
}

func (b *Backend) GetAccount(ctx context.Context, accountID string) (_ *model.Account, err error) {
	ctx, done := b.start(ctx, "GetAccount", accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.GetAccount(ctx, accountID)
}

func (b *Backend) GetAccountByLocalLoginID(ctx context.Context, loginID string) (_ *model.Account, err error) {
	ctx, done := b.start(ctx, "GetAccountByLocalLoginID")
	defer func() { done(err) }()
	return b.next.GetAccountByLocalLoginID(ctx, loginID)
}

func (b *Backend) GetAccountByGithubUserID(ctx context.Context, githubUserID string) (_ *model.Account, err error) {
	ctx, done := b.start(ctx, "GetAccountByGithubUserID")
	defer func() { done(err) }()
	return b.next.GetAccountByGithubUserID(ctx, githubUserID)
}

func (b *Backend) ListAccounts(ctx context.Context) (_ []model.Account, err error) {
	ctx, done := b.start(ctx, "ListAccounts")
	defer func() { done(err) }()
	return b.next.ListAccounts(ctx)
}

func (b *Backend) RemoveAccount(ctx context.Context, accountID string) (err error) {
	ctx, done := b.start(ctx, "RemoveAccount", accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.RemoveAccount(ctx, accountID)
}

func (b *Backend) SearchAccounts(ctx context.Context, query repo.AccountSearchQuery) (_ repo.AccountSearchPage, err error) {
	ctx, done := b.start(ctx, "SearchAccounts",
		attribute.String("modelgate.search_field", string(query.Field)),
		attribute.String("modelgate.search_mode", string(query.Mode)),
		workspaceAttr(query.WorkspaceID))
	defer func() { done(err) }()
	return b.next.SearchAccounts(ctx, query)
}

func (b *Backend) UpsertWorkspace(ctx context.Context, workspace model.Workspace) (err error) {
	ctx, done := b.start(ctx, "UpsertWorkspace", workspaceAttr(workspace.WorkspaceID))
	defer func() { done(err) }()
	return b.next.UpsertWorkspace(ctx, workspace)
}

func (b *Backend) GetWorkspace(ctx context.Context, workspaceID string) (_ *model.Workspace, err error) {
	ctx, done := b.start(ctx, "GetWorkspace", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.GetWorkspace(ctx, workspaceID)
}

func (b *Backend) GetWorkspaceByTenant(ctx context.Context, tenantID string) (_ *model.Workspace, err error) {
	ctx, done := b.start(ctx, "GetWorkspaceByTenant", attribute.String("modelgate.tenant_id", tenantID))
	defer func() { done(err) }()
	return b.next.GetWorkspaceByTenant(ctx, tenantID)
}

func (b *Backend) ListWorkspaces(ctx context.Context) (_ []model.Workspace, err error) {
	ctx, done := b.start(ctx, "ListWorkspaces")
	defer func() { done(err) }()
	return b.next.ListWorkspaces(ctx)
}

func (b *Backend) ListWorkspacesForAccount(ctx context.Context, accountID string) (_ []model.Workspace, err error) {
	ctx, done := b.start(ctx, "ListWorkspacesForAccount", accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.ListWorkspacesForAccount(ctx, accountID)
}

func (b *Backend) RemoveWorkspace(ctx context.Context, workspaceID string) (err error) {
	ctx, done := b.start(ctx, "RemoveWorkspace", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.RemoveWorkspace(ctx, workspaceID)
}

func (b *Backend) UpsertRole(ctx context.Context, role model.WorkspaceRole) (err error) {
	ctx, done := b.start(ctx, "UpsertRole", workspaceAttr(role.WorkspaceID))
	defer func() { done(err) }()
	return b.next.UpsertRole(ctx, role)
}

func (b *Backend) GetRole(ctx context.Context, workspaceID, roleID string) (_ *model.WorkspaceRole, err error) {
	ctx, done := b.start(ctx, "GetRole", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.GetRole(ctx, workspaceID, roleID)
}

func (b *Backend) ListRoles(ctx context.Context, workspaceID string) (_ []model.WorkspaceRole, err error) {
	ctx, done := b.start(ctx, "ListRoles", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.ListRoles(ctx, workspaceID)
}

func (b *Backend) RemoveRole(ctx context.Context, workspaceID, roleID string) (err error) {
	ctx, done := b.start(ctx, "RemoveRole", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.RemoveRole(ctx, workspaceID, roleID)
}

func (b *Backend) UpsertMember(ctx context.Context, member model.WorkspaceMember) (err error) {
	ctx, done := b.start(ctx, "UpsertMember", workspaceAttr(member.WorkspaceID), accountAttr(member.AccountID))
	defer func() { done(err) }()
	return b.next.UpsertMember(ctx, member)
}

func (b *Backend) GetMember(ctx context.Context, workspaceID, accountID string) (_ *model.WorkspaceMember, err error) {
	ctx, done := b.start(ctx, "GetMember", workspaceAttr(workspaceID), accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.GetMember(ctx, workspaceID, accountID)
}

func (b *Backend) ListMembers(ctx context.Context, workspaceID string) (_ []model.WorkspaceMember, err error) {
	ctx, done := b.start(ctx, "ListMembers", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.ListMembers(ctx, workspaceID)
}

func (b *Backend) RemoveMember(ctx context.Context, workspaceID, accountID string) (err error) {
	ctx, done := b.start(ctx, "RemoveMember", workspaceAttr(workspaceID), accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.RemoveMember(ctx, workspaceID, accountID)
}

func (b *Backend) GetAccessMeta(ctx context.Context, workspaceID, accountID string) (_ *model.WorkspaceAccessMeta, err error) {
	ctx, done := b.start(ctx, "GetAccessMeta", workspaceAttr(workspaceID), accountAttr(accountID))
	defer func() { done(err) }()
	return b.next.GetAccessMeta(ctx, workspaceID, accountID)
}

func (b *Backend) ListAccessMeta(ctx context.Context, workspaceID string) (_ []model.WorkspaceAccessMeta, err error) {
	ctx, done := b.start(ctx, "ListAccessMeta", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.ListAccessMeta(ctx, workspaceID)
}

func (b *Backend) UpsertFolderAcl(ctx context.Context, acl model.WorkspaceFolderAcl) (_ model.WorkspaceFolderAcl, err error) {
	ctx, done := b.start(ctx, "UpsertFolderAcl", workspaceAttr(acl.WorkspaceID))
	defer func() { done(err) }()
	return b.next.UpsertFolderAcl(ctx, acl)
}

func (b *Backend) ListFolderAcl(ctx context.Context, workspaceID string) (_ []model.WorkspaceFolderAcl, err error) {
	ctx, done := b.start(ctx, "ListFolderAcl", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.ListFolderAcl(ctx, workspaceID)
}

func (b *Backend) RemoveFolderAcl(ctx context.Context, workspaceID, entryID string) (err error) {
	ctx, done := b.start(ctx, "RemoveFolderAcl", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.RemoveFolderAcl(ctx, workspaceID, entryID)
}

func (b *Backend) UpsertApiKey(ctx context.Context, key model.WorkspaceApiKey) (err error) {
	ctx, done := b.start(ctx, "UpsertApiKey", workspaceAttr(key.WorkspaceID))
	defer func() { done(err) }()
	return b.next.UpsertApiKey(ctx, key)
}

func (b *Backend) GetApiKey(ctx context.Context, workspaceID, keyID string) (_ *model.WorkspaceApiKey, err error) {
	ctx, done := b.start(ctx, "GetApiKey", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.GetApiKey(ctx, workspaceID, keyID)
}

func (b *Backend) FindApiKeyByPrefix(ctx context.Context, prefix string) (_ *model.WorkspaceApiKey, err error) {
	ctx, done := b.start(ctx, "FindApiKeyByPrefix")
	defer func() { done(err) }()
	return b.next.FindApiKeyByPrefix(ctx, prefix)
}

func (b *Backend) ListApiKeys(ctx context.Context, workspaceID string) (_ []model.WorkspaceApiKey, err error) {
	ctx, done := b.start(ctx, "ListApiKeys", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.ListApiKeys(ctx, workspaceID)
}

func (b *Backend) TouchApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) (err error) {
	ctx, done := b.start(ctx, "TouchApiKey", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.TouchApiKey(ctx, workspaceID, keyID, at)
}

func (b *Backend) RevokeApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) (err error) {
	ctx, done := b.start(ctx, "RevokeApiKey", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.RevokeApiKey(ctx, workspaceID, keyID, at)
}

func (b *Backend) RemoveApiKey(ctx context.Context, workspaceID, keyID string) (err error) {
	ctx, done := b.start(ctx, "RemoveApiKey", workspaceAttr(workspaceID))
	defer func() { done(err) }()
	return b.next.RemoveApiKey(ctx, workspaceID, keyID)
}

func (b *Backend) GetServiceSettings(ctx context.Context) (_ model.ServiceSettings, err error) {
	ctx, done := b.start(ctx, "GetServiceSettings")
	defer func() { done(err) }()
	return b.next.GetServiceSettings(ctx)
}

func (b *Backend) SaveServiceSettings(ctx context.Context, settings model.ServiceSettings) (_ model.ServiceSettings, err error) {
	ctx, done := b.start(ctx, "SaveServiceSettings")
	defer func() { done(err) }()
	return b.next.SaveServiceSettings(ctx, settings)
}
