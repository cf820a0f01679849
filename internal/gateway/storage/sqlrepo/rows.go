package sqlrepo

import (
	"time"

	"gorm.io/datatypes"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

// ProjectRow maps project_records.
type ProjectRow struct {
	TenantID  string         `gorm:"column:tenant_id;primaryKey"`
	ProjectID string         `gorm:"column:project_id;primaryKey"`
	Revision  string         `gorm:"column:revision"`
	State     datatypes.JSON `gorm:"column:state"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (ProjectRow) TableName() string { return "project_records" }

type accountRow struct {
	AccountID    string                      `gorm:"column:account_id;primaryKey"`
	Email        string                      `gorm:"column:email"`
	DisplayName  string                      `gorm:"column:display_name"`
	SystemRoles  datatypes.JSONSlice[string] `gorm:"column:system_roles"`
	LocalLoginID *string                     `gorm:"column:local_login_id"`
	PasswordHash *string                     `gorm:"column:password_hash"`
	GithubUserID *string                     `gorm:"column:github_user_id"`
	GithubLogin  *string                     `gorm:"column:github_login"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt    time.Time                   `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (accountRow) TableName() string { return "accounts" }

type workspaceRow struct {
	WorkspaceID         string    `gorm:"column:workspace_id;primaryKey"`
	TenantID            string    `gorm:"column:tenant_id"`
	Name                string    `gorm:"column:name"`
	DefaultMemberRoleID string    `gorm:"column:default_member_role_id"`
	CreatedBy           string    `gorm:"column:created_by"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (workspaceRow) TableName() string { return "workspaces" }

type roleRow struct {
	WorkspaceID string                      `gorm:"column:workspace_id;primaryKey"`
	RoleID      string                      `gorm:"column:role_id;primaryKey"`
	Name        string                      `gorm:"column:name"`
	Builtin     *string                     `gorm:"column:builtin"`
	Permissions datatypes.JSONSlice[string] `gorm:"column:permissions"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (roleRow) TableName() string { return "workspace_roles" }

type memberRow struct {
	WorkspaceID string                      `gorm:"column:workspace_id;primaryKey"`
	AccountID   string                      `gorm:"column:account_id;primaryKey"`
	RoleIDs     datatypes.JSONSlice[string] `gorm:"column:role_ids"`
	JoinedAt    time.Time                   `gorm:"column:joined_at"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (memberRow) TableName() string { return "workspace_members" }

type accessMetaRow struct {
	WorkspaceID string                      `gorm:"column:workspace_id;primaryKey"`
	AccountID   string                      `gorm:"column:account_id;primaryKey"`
	RoleIDs     datatypes.JSONSlice[string] `gorm:"column:role_ids"`
	RoleHash    string                      `gorm:"column:role_hash"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (accessMetaRow) TableName() string { return "workspace_access_meta" }

type folderAclRow struct {
	WorkspaceID string                      `gorm:"column:workspace_id;primaryKey"`
	EntryID     string                      `gorm:"column:entry_id;primaryKey"`
	Scope       string                      `gorm:"column:scope"`
	FolderID    *string                     `gorm:"column:folder_id"`
	RoleIDs     datatypes.JSONSlice[string] `gorm:"column:role_ids"`
	ReadEffect  string                      `gorm:"column:read_effect"`
	WriteEffect string                      `gorm:"column:write_effect"`
	UpdatedAt   time.Time                   `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (folderAclRow) TableName() string { return "workspace_folder_acl" }

type apiKeyRow struct {
	WorkspaceID string     `gorm:"column:workspace_id;primaryKey"`
	KeyID       string     `gorm:"column:key_id;primaryKey"`
	Name        string     `gorm:"column:name"`
	KeyPrefix   string     `gorm:"column:key_prefix"`
	KeyHash     string     `gorm:"column:key_hash"`
	CreatedBy   string     `gorm:"column:created_by"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	LastUsedAt  *time.Time `gorm:"column:last_used_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	RevokedAt   *time.Time `gorm:"column:revoked_at"`
}

func (apiKeyRow) TableName() string { return "workspace_api_keys" }

type settingsRow struct {
	SettingsID string         `gorm:"column:settings_id;primaryKey"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (settingsRow) TableName() string { return "service_settings" }

func strs(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](v)
}

func plain(v datatypes.JSONSlice[string]) []string {
	if v == nil {
		return []string{}
	}
	return []string(v)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toProjectRecord(r ProjectRow) model.ProjectRecord {
	return model.ProjectRecord{
		Scope:     model.ProjectScope{TenantID: r.TenantID, ProjectID: r.ProjectID},
		Revision:  r.Revision,
		State:     []byte(r.State),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func fromAccount(a model.Account) accountRow {
	return accountRow{
		AccountID:    a.AccountID,
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		SystemRoles:  strs(a.SystemRoles),
		LocalLoginID: a.LocalLoginID,
		PasswordHash: a.PasswordHash,
		GithubUserID: a.GithubUserID,
		GithubLogin:  a.GithubLogin,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r accountRow) toModel() model.Account {
	return model.Account{
		AccountID:    r.AccountID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		SystemRoles:  plain(r.SystemRoles),
		LocalLoginID: r.LocalLoginID,
		PasswordHash: r.PasswordHash,
		GithubUserID: r.GithubUserID,
		GithubLogin:  r.GithubLogin,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func fromWorkspace(w model.Workspace) workspaceRow {
	return workspaceRow{
		WorkspaceID:         w.WorkspaceID,
		TenantID:            w.TenantID,
		Name:                w.Name,
		DefaultMemberRoleID: w.MemberRole(),
		CreatedBy:           w.CreatedBy,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

func (r workspaceRow) toModel() model.Workspace {
	return model.Workspace{
		WorkspaceID:         r.WorkspaceID,
		TenantID:            r.TenantID,
		Name:                r.Name,
		DefaultMemberRoleID: r.DefaultMemberRoleID,
		CreatedBy:           r.CreatedBy,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

func fromRole(r model.WorkspaceRole) roleRow {
	return roleRow{
		WorkspaceID: r.WorkspaceID,
		RoleID:      r.RoleID,
		Name:        r.Name,
		Builtin:     r.Builtin,
		Permissions: strs(r.Permissions),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r roleRow) toModel() model.WorkspaceRole {
	return model.WorkspaceRole{
		WorkspaceID: r.WorkspaceID,
		RoleID:      r.RoleID,
		Name:        r.Name,
		Builtin:     r.Builtin,
		Permissions: plain(r.Permissions),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r memberRow) toModel() model.WorkspaceMember {
	return model.WorkspaceMember{
		WorkspaceID: r.WorkspaceID,
		AccountID:   r.AccountID,
		RoleIDs:     plain(r.RoleIDs),
		JoinedAt:    r.JoinedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r accessMetaRow) toModel() model.WorkspaceAccessMeta {
	return model.WorkspaceAccessMeta{
		WorkspaceID: r.WorkspaceID,
		AccountID:   r.AccountID,
		RoleIDs:     plain(r.RoleIDs),
		RoleHash:    r.RoleHash,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func fromFolderAcl(a model.WorkspaceFolderAcl) folderAclRow {
	return folderAclRow{
		WorkspaceID: a.WorkspaceID,
		EntryID:     a.EntryID,
		Scope:       a.Scope,
		FolderID:    a.FolderID,
		RoleIDs:     strs(a.RoleIDs),
		ReadEffect:  a.ReadEffect,
		WriteEffect: a.WriteEffect,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (r folderAclRow) toModel() model.WorkspaceFolderAcl {
	return model.WorkspaceFolderAcl{
		WorkspaceID: r.WorkspaceID,
		EntryID:     r.EntryID,
		Scope:       r.Scope,
		FolderID:    r.FolderID,
		RoleIDs:     plain(r.RoleIDs),
		ReadEffect:  r.ReadEffect,
		WriteEffect: r.WriteEffect,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func fromApiKey(k model.WorkspaceApiKey) apiKeyRow {
	return apiKeyRow{
		WorkspaceID: k.WorkspaceID,
		KeyID:       k.KeyID,
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		KeyHash:     k.KeyHash,
		CreatedBy:   k.CreatedBy,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
		LastUsedAt:  utc(k.LastUsedAt),
		ExpiresAt:   utc(k.ExpiresAt),
		RevokedAt:   utc(k.RevokedAt),
	}
}

func (r apiKeyRow) toModel() model.WorkspaceApiKey {
	return model.WorkspaceApiKey{
		WorkspaceID: r.WorkspaceID,
		KeyID:       r.KeyID,
		Name:        r.Name,
		KeyPrefix:   r.KeyPrefix,
		KeyHash:     r.KeyHash,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		LastUsedAt:  utc(r.LastUsedAt),
		ExpiresAt:   utc(r.ExpiresAt),
		RevokedAt:   utc(r.RevokedAt),
	}
}
