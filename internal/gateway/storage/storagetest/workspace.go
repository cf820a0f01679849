package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

// RunWorkspaceRepository exercises accounts, workspaces and everything scoped to a workspace.
func RunWorkspaceRepository(t *testing.T, newBackend Factory) {
	t.Run("BuiltinRolesAndAccessMeta", func(t *testing.T) { testBuiltinRolesAndAccessMeta(t, newBackend(t)) })
	t.Run("ListRolesRecreatesBuiltins", func(t *testing.T) { testListRolesRecreates(t, newBackend(t)) })
	t.Run("WorkspaceCascade", func(t *testing.T) { testWorkspaceCascade(t, newBackend(t)) })
	t.Run("WorkspaceLookups", func(t *testing.T) { testWorkspaceLookups(t, newBackend(t)) })
	t.Run("AccountConflicts", func(t *testing.T) { testAccountConflicts(t, newBackend(t)) })
	t.Run("AccountLookups", func(t *testing.T) { testAccountLookups(t, newBackend(t)) })
	t.Run("RemoveAccount", func(t *testing.T) { testRemoveAccount(t, newBackend(t)) })
	t.Run("MemberRequiresWorkspace", func(t *testing.T) { testMemberRequiresWorkspace(t, newBackend(t)) })
	t.Run("FolderAcl", func(t *testing.T) { testFolderAcl(t, newBackend(t)) })
	t.Run("ApiKeys", func(t *testing.T) { testApiKeys(t, newBackend(t)) })
	t.Run("ServiceSettings", func(t *testing.T) { testServiceSettings(t, newBackend(t)) })
	t.Run("SearchAccounts", func(t *testing.T) { testSearchAccounts(t, newBackend(t)) })
	t.Run("SearchAccountsFoldsUnicode", func(t *testing.T) { testSearchAccountsUnicode(t, newBackend(t)) })
}

func strp(s string) *string { return &s }

func mustWorkspace(t *testing.T, b repo.Backend, id, tenant string) {
	t.Helper()
	require.NoError(t, b.UpsertWorkspace(context.Background(), model.Workspace{
		WorkspaceID: id,
		TenantID:    tenant,
		Name:        "Workspace " + id,
		CreatedBy:   "acc-owner",
	}))
}

func mustAccount(t *testing.T, b repo.Backend, a model.Account) {
	t.Helper()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = day0
	}
	require.NoError(t, b.UpsertAccount(context.Background(), a))
}

func roleIDs(roles []model.WorkspaceRole) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.RoleID)
	}
	return out
}

func testBuiltinRolesAndAccessMeta(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	mustAccount(t, b, model.Account{AccountID: "acc-1", Email: "one@example.com", DisplayName: "One"})

	roles, err := b.ListRoles(ctx, "ws1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{model.AdminRoleID, model.MemberRoleID}, roleIDs(roles))
	admins := 0
	for _, r := range roles {
		if r.IsAdmin() {
			admins++
		}
	}
	assert.Equal(t, 1, admins)

	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{
		WorkspaceID: "ws1",
		AccountID:   "acc-1",
		RoleIDs:     []string{model.MemberRoleID},
	}))
	meta, err := b.GetAccessMeta(ctx, "ws1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{model.MemberRoleID}, meta.RoleIDs)
	assert.Equal(t, model.RoleHash([]string{model.MemberRoleID}), meta.RoleHash)

	require.NoError(t, b.RemoveRole(ctx, "ws1", model.MemberRoleID))

	member, err := b.GetMember(ctx, "ws1", "acc-1")
	require.NoError(t, err)
	assert.Empty(t, member.RoleIDs)
	_, err = b.GetAccessMeta(ctx, "ws1", "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	metas, err := b.ListAccessMeta(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func testListRolesRecreates(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	require.NoError(t, b.UpsertRole(ctx, model.WorkspaceRole{
		WorkspaceID: "ws1",
		RoleID:      "editor",
		Name:        "Editor",
		Permissions: []string{"projects:write"},
	}))

	require.NoError(t, b.RemoveRole(ctx, "ws1", model.AdminRoleID))
	require.NoError(t, b.RemoveRole(ctx, "ws1", model.MemberRoleID))

	roles, err := b.ListRoles(ctx, "ws1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{model.AdminRoleID, model.MemberRoleID, "editor"}, roleIDs(roles))

	role, err := b.GetRole(ctx, "ws1", "editor")
	require.NoError(t, err)
	assert.Equal(t, []string{"projects:write"}, role.Permissions)
	assert.Nil(t, role.Builtin)

	_, err = b.ListRoles(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func testWorkspaceCascade(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	mustWorkspace(t, b, "ws2", "tenant-2")
	mustAccount(t, b, model.Account{AccountID: "acc-1", DisplayName: "One"})

	for _, ws := range []string{"ws1", "ws2"} {
		require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: ws, AccountID: "acc-1", RoleIDs: []string{model.AdminRoleID}}))
		_, err := b.UpsertFolderAcl(ctx, model.WorkspaceFolderAcl{
			WorkspaceID: ws, Scope: model.AclScopeWorkspace, RoleIDs: []string{model.AdminRoleID},
			ReadEffect: model.EffectAllow, WriteEffect: model.EffectAllow,
		})
		require.NoError(t, err)
		require.NoError(t, b.UpsertApiKey(ctx, model.WorkspaceApiKey{
			WorkspaceID: ws, KeyID: "key-" + ws, Name: "ci", KeyPrefix: "pfx" + ws, KeyHash: "hash",
		}))
	}

	require.NoError(t, b.RemoveWorkspace(ctx, "ws1"))

	_, err := b.GetWorkspace(ctx, "ws1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	members, err := b.ListMembers(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, members)
	acl, err := b.ListFolderAcl(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, acl)
	keys, err := b.ListApiKeys(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, keys)
	metas, err := b.ListAccessMeta(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, metas)
	_, err = b.GetRole(ctx, "ws1", model.AdminRoleID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	// ws2 is untouched.
	members, err = b.ListMembers(ctx, "ws2")
	require.NoError(t, err)
	assert.Len(t, members, 1)
	keys, err = b.ListApiKeys(ctx, "ws2")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	metas, err = b.ListAccessMeta(ctx, "ws2")
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func testWorkspaceLookups(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	mustWorkspace(t, b, "ws2", "tenant-2")
	mustAccount(t, b, model.Account{AccountID: "acc-1"})

	ws, err := b.GetWorkspaceByTenant(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, "ws2", ws.WorkspaceID)
	assert.Equal(t, model.MemberRoleID, ws.DefaultMemberRoleID)

	err = b.UpsertWorkspace(ctx, model.Workspace{WorkspaceID: "ws3", TenantID: "tenant-1"})
	assert.ErrorIs(t, err, repo.ErrTenantConflict)

	require.NoError(t, b.UpsertWorkspace(ctx, model.Workspace{WorkspaceID: "ws1", TenantID: "tenant-1", Name: "Renamed"}))
	ws, err = b.GetWorkspace(ctx, "ws1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", ws.Name)

	all, err := b.ListWorkspaces(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "ws2", AccountID: "acc-1", RoleIDs: []string{model.MemberRoleID}}))
	mine, err := b.ListWorkspacesForAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ws2", mine[0].WorkspaceID)

	_, err = b.GetWorkspaceByTenant(ctx, "nobody")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func testAccountConflicts(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	require.NoError(t, b.CreateAccount(ctx, model.Account{
		AccountID: "acc-1", LocalLoginID: strp("alice"), GithubUserID: strp("1001"), CreatedAt: day0,
	}))

	err := b.CreateAccount(ctx, model.Account{AccountID: "acc-1", CreatedAt: day0})
	assert.ErrorIs(t, err, repo.ErrAccountConflict)

	err = b.UpsertAccount(ctx, model.Account{AccountID: "acc-2", LocalLoginID: strp("alice"), CreatedAt: day0})
	assert.ErrorIs(t, err, repo.ErrLocalLoginConflict)

	err = b.UpsertAccount(ctx, model.Account{AccountID: "acc-3", GithubUserID: strp("1001"), CreatedAt: day0})
	assert.ErrorIs(t, err, repo.ErrGithubIdentityConflict)

	// Accounts without optional identities never collide.
	mustAccount(t, b, model.Account{AccountID: "acc-4"})
	mustAccount(t, b, model.Account{AccountID: "acc-5"})

	all, err := b.ListAccounts(ctx)
	require.NoError(t, err)
	var ids []string
	for _, a := range all {
		ids = append(ids, a.AccountID)
	}
	assert.Equal(t, []string{"acc-1", "acc-4", "acc-5"}, ids)
}

func testAccountLookups(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustAccount(t, b, model.Account{
		AccountID:    "acc-1",
		Email:        "alice@example.com",
		DisplayName:  "Alice",
		SystemRoles:  []string{"admin"},
		LocalLoginID: strp("alice"),
		PasswordHash: strp("$2a$10$hash"),
		GithubUserID: strp("1001"),
		GithubLogin:  strp("alice-gh"),
	})

	a, err := b.GetAccountByLocalLoginID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", a.AccountID)
	assert.Equal(t, []string{"admin"}, a.SystemRoles)
	assert.Equal(t, "$2a$10$hash", *a.PasswordHash)
	assert.True(t, day0.Equal(a.CreatedAt))

	a, err = b.GetAccountByGithubUserID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alice-gh", *a.GithubLogin)

	_, err = b.GetAccount(ctx, "ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = b.GetAccountByLocalLoginID(ctx, "ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	// Upsert replaces mutable fields and keeps the creation time.
	require.NoError(t, b.UpsertAccount(ctx, model.Account{AccountID: "acc-1", Email: "new@example.com", CreatedAt: day0.Add(time.Hour)}))
	a, err = b.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", a.Email)
	assert.Nil(t, a.LocalLoginID)
	assert.Empty(t, a.SystemRoles)
	assert.True(t, day0.Equal(a.CreatedAt))
}

func testRemoveAccount(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	mustAccount(t, b, model.Account{AccountID: "acc-1"})
	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "ws1", AccountID: "acc-1", RoleIDs: []string{model.MemberRoleID}}))

	require.NoError(t, b.RemoveAccount(ctx, "acc-1"))

	_, err := b.GetAccount(ctx, "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = b.GetMember(ctx, "ws1", "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = b.GetAccessMeta(ctx, "ws1", "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func testMemberRequiresWorkspace(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	err := b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "nope", AccountID: "acc-1", RoleIDs: []string{"r"}})
	assert.ErrorIs(t, err, repo.ErrNotFound)

	mustWorkspace(t, b, "ws1", "tenant-1")
	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{
		WorkspaceID: "ws1", AccountID: "acc-1", RoleIDs: []string{" b ", "a", "b", ""},
	}))
	m, err := b.GetMember(ctx, "ws1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.RoleIDs)
	meta, err := b.GetAccessMeta(ctx, "ws1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleHash([]string{"a", "b"}), meta.RoleHash)

	// Emptying the roles drops the projection row but keeps the membership.
	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "ws1", AccountID: "acc-1"}))
	_, err = b.GetAccessMeta(ctx, "ws1", "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = b.GetMember(ctx, "ws1", "acc-1")
	require.NoError(t, err)

	require.NoError(t, b.RemoveMember(ctx, "ws1", "acc-1"))
	_, err = b.GetMember(ctx, "ws1", "acc-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func testFolderAcl(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	require.NoError(t, b.UpsertRole(ctx, model.WorkspaceRole{WorkspaceID: "ws1", RoleID: "viewer", Name: "Viewer"}))

	root, err := b.UpsertFolderAcl(ctx, model.WorkspaceFolderAcl{
		WorkspaceID: "ws1", Scope: model.AclScopeWorkspace, RoleIDs: []string{model.MemberRoleID},
		ReadEffect: model.EffectAllow, WriteEffect: model.EffectDeny,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, root.EntryID)
	assert.Nil(t, root.FolderID)

	folder, err := b.UpsertFolderAcl(ctx, model.WorkspaceFolderAcl{
		WorkspaceID: "ws1", EntryID: "entry-folder", Scope: model.AclScopeFolder, FolderID: strp("f-1"),
		RoleIDs: []string{"viewer"}, ReadEffect: model.EffectAllow, WriteEffect: model.EffectInherit,
	})
	require.NoError(t, err)
	assert.Equal(t, "entry-folder", folder.EntryID)

	entries, err := b.ListFolderAcl(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, b.RemoveRole(ctx, "ws1", "viewer"))
	entries, err = b.ListFolderAcl(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, root.EntryID, entries[0].EntryID)
	assert.Equal(t, model.EffectDeny, entries[0].WriteEffect)

	require.NoError(t, b.RemoveFolderAcl(ctx, "ws1", root.EntryID))
	entries, err = b.ListFolderAcl(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = b.UpsertFolderAcl(ctx, model.WorkspaceFolderAcl{WorkspaceID: "nope", Scope: model.AclScopeWorkspace})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func testApiKeys(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	expires := day0.Add(24 * time.Hour)
	require.NoError(t, b.UpsertApiKey(ctx, model.WorkspaceApiKey{
		WorkspaceID: "ws1", KeyID: "k1", Name: "ci", KeyPrefix: "abc123", KeyHash: "h1",
		CreatedBy: "acc-1", CreatedAt: day0, ExpiresAt: &expires,
	}))

	k, err := b.FindApiKeyByPrefix(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "k1", k.KeyID)
	require.NotNil(t, k.ExpiresAt)
	assert.True(t, expires.Equal(*k.ExpiresAt))
	assert.Nil(t, k.LastUsedAt)

	used := day0.Add(time.Minute)
	require.NoError(t, b.TouchApiKey(ctx, "ws1", "k1", used))
	k, err = b.GetApiKey(ctx, "ws1", "k1")
	require.NoError(t, err)
	require.NotNil(t, k.LastUsedAt)
	assert.True(t, used.Equal(*k.LastUsedAt))

	require.NoError(t, b.RevokeApiKey(ctx, "ws1", "k1", used))
	k, err = b.GetApiKey(ctx, "ws1", "k1")
	require.NoError(t, err)
	assert.False(t, k.Active(used))

	err = b.UpsertApiKey(ctx, model.WorkspaceApiKey{WorkspaceID: "ws1", KeyID: "k2", KeyPrefix: "abc123", KeyHash: "h2"})
	assert.ErrorIs(t, err, repo.ErrKeyPrefixConflict)

	assert.ErrorIs(t, b.TouchApiKey(ctx, "ws1", "ghost", used), repo.ErrNotFound)
	_, err = b.FindApiKeyByPrefix(ctx, "zzz")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, b.RemoveApiKey(ctx, "ws1", "k1"))
	keys, err := b.ListApiKeys(ctx, "ws1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testServiceSettings(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	got, err := b.GetServiceSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultServiceSettings(), got)

	in := model.ServiceSettings{
		SMTP: model.SMTPSettings{Enabled: true, Host: " smtp.example.com ", Port: 70000, Security: "SSL"},
		OAuth: model.OAuthSettings{Github: model.GithubOAuthSettings{
			Enabled: true, ClientID: "cid", ClientSecret: "secret",
		}},
	}
	stored, err := b.SaveServiceSettings(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", stored.SMTP.Host)
	assert.Equal(t, model.DefaultSMTPPort, stored.SMTP.Port)
	assert.Equal(t, "tls", stored.SMTP.Security)
	require.NotNil(t, stored.UpdatedAt)

	got, err = b.GetServiceSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored.SMTP, got.SMTP)
	assert.Equal(t, stored.OAuth, got.OAuth)
}

func testSearchAccounts(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustWorkspace(t, b, "ws1", "tenant-1")
	seed := []model.Account{
		{AccountID: "acc-a", Email: "alice@example.com", DisplayName: "Alice Smith", LocalLoginID: strp("alice"), CreatedAt: day0.Add(3 * time.Hour)},
		{AccountID: "acc-b", Email: "bob@example.com", DisplayName: "Bob Jones", GithubLogin: strp("bobby"), CreatedAt: day0.Add(1 * time.Hour)},
		{AccountID: "acc-c", Email: "carol@corp.test", DisplayName: "Carol Smith", CreatedAt: day0.Add(2 * time.Hour)},
		{AccountID: "acc-d", Email: "dan@corp.test", DisplayName: "100% Dan", CreatedAt: day0},
	}
	for _, a := range seed {
		mustAccount(t, b, a)
	}
	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "ws1", AccountID: "acc-a", RoleIDs: []string{model.MemberRoleID}}))
	require.NoError(t, b.UpsertMember(ctx, model.WorkspaceMember{WorkspaceID: "ws1", AccountID: "acc-c", RoleIDs: []string{model.MemberRoleID}}))

	ids := func(p repo.AccountSearchPage) []string {
		out := []string{}
		for _, a := range p.Items {
			out = append(out, a.AccountID)
		}
		return out
	}

	tests := []struct {
		name  string
		query repo.AccountSearchQuery
		want  []string
	}{
		{name: "all by name", query: repo.AccountSearchQuery{}, want: []string{"acc-d", "acc-a", "acc-b", "acc-c"}},
		{name: "all by created", query: repo.AccountSearchQuery{Sort: repo.SortByCreated}, want: []string{"acc-d", "acc-b", "acc-c", "acc-a"}},
		{name: "contains any field", query: repo.AccountSearchQuery{Text: "SMITH"}, want: []string{"acc-a", "acc-c"}},
		{name: "prefix email", query: repo.AccountSearchQuery{Text: "bo", Field: repo.SearchFieldEmail, Mode: repo.MatchPrefix}, want: []string{"acc-b"}},
		{name: "exact login", query: repo.AccountSearchQuery{Text: "Alice", Field: repo.SearchFieldLocalLoginID, Mode: repo.MatchExact}, want: []string{"acc-a"}},
		{name: "exact is not contains", query: repo.AccountSearchQuery{Text: "alic", Field: repo.SearchFieldLocalLoginID, Mode: repo.MatchExact}, want: []string{}},
		{name: "github login", query: repo.AccountSearchQuery{Text: "bob", Field: repo.SearchFieldGithubLogin}, want: []string{"acc-b"}},
		{name: "wildcards are literal", query: repo.AccountSearchQuery{Text: "%"}, want: []string{"acc-d"}},
		{name: "underscore is literal", query: repo.AccountSearchQuery{Text: "_"}, want: []string{}},
		{name: "workspace members only", query: repo.AccountSearchQuery{WorkspaceID: "ws1"}, want: []string{"acc-a", "acc-c"}},
		{name: "members matching text", query: repo.AccountSearchQuery{WorkspaceID: "ws1", Text: "carol"}, want: []string{"acc-c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := b.SearchAccounts(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page))
			assert.Empty(t, page.NextCursor)
		})
	}

	t.Run("paging", func(t *testing.T) {
		var got []string
		cursor := ""
		for pages := 0; pages < 5; pages++ {
			page, err := b.SearchAccounts(ctx, repo.AccountSearchQuery{Limit: 3, Cursor: cursor})
			require.NoError(t, err)
			got = append(got, ids(page)...)
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, []string{"acc-d", "acc-a", "acc-b", "acc-c"}, got)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := b.SearchAccounts(ctx, repo.AccountSearchQuery{Field: "phone"})
		assert.ErrorIs(t, err, repo.ErrInvalidSearch)
		_, err = b.SearchAccounts(ctx, repo.AccountSearchQuery{Cursor: "-1"})
		assert.ErrorIs(t, err, repo.ErrInvalidSearch)
	})
}

func testSearchAccountsUnicode(t *testing.T, b repo.Backend) {
	ctx := context.Background()
	mustAccount(t, b, model.Account{AccountID: "acc-e", Email: "elodie@example.fr", DisplayName: "Élodie Müller", CreatedAt: day0})
	mustAccount(t, b, model.Account{AccountID: "acc-z", Email: "zoe@example.com", DisplayName: "Zoe", CreatedAt: day0})

	tests := []struct {
		text string
		mode repo.MatchMode
	}{
		{text: "Élodie Müller", mode: repo.MatchExact},
		{text: "élodie müller", mode: repo.MatchExact},
		{text: "ÉLODIE MÜLLER", mode: repo.MatchExact},
		{text: "ÉLO", mode: repo.MatchPrefix},
		{text: "MÜLL", mode: repo.MatchContains},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			page, err := b.SearchAccounts(ctx, repo.AccountSearchQuery{
				Text: tt.text, Field: repo.SearchFieldDisplayName, Mode: tt.mode,
			})
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, "acc-e", page.Items[0].AccountID)
		})
	}
}
