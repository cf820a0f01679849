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

package model

import "time"

const (
	// BuiltinWorkspaceAdmin marks the role that administers a workspace.
	BuiltinWorkspaceAdmin = "workspace_admin"

	AdminRoleID  = "role_workspace_admin"
	MemberRoleID = "role_workspace_member"
)

// Folder ACL scopes and effects.
const (
	AclScopeWorkspace = "workspace"
	AclScopeFolder    = "folder"

	EffectAllow   = "allow"
	EffectDeny    = "deny"
	EffectInherit = "inherit"
)

// Permissions granted by the builtin roles.
var (
	AdminPermissions  = []string{"workspace:manage", "members:manage", "roles:manage", "keys:manage", "projects:read", "projects:write"}
	MemberPermissions = []string{"projects:read", "projects:write"}
)

type Account struct {
	AccountID    string    `json:"accountId"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	SystemRoles  []string  `json:"systemRoles"`
	LocalLoginID *string   `json:"localLoginId,omitempty"`
	PasswordHash *string   `json:"passwordHash,omitempty"`
	GithubUserID *string   `json:"githubUserId,omitempty"`
	GithubLogin  *string   `json:"githubLogin,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Workspace struct {
	WorkspaceID         string    `json:"workspaceId"`
	TenantID            string    `json:"tenantId"`
	Name                string    `json:"name"`
	DefaultMemberRoleID string    `json:"defaultMemberRoleId"`
	CreatedBy           string    `json:"createdBy"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// MemberRole returns the default member role id, falling back to the builtin one.
func (w Workspace) MemberRole() string {
	if w.DefaultMemberRoleID == "" {
		return MemberRoleID
	}
	return w.DefaultMemberRoleID
}

type WorkspaceRole struct {
	WorkspaceID string    `json:"workspaceId"`
	RoleID      string    `json:"roleId"`
	Name        string    `json:"name"`
	Builtin     *string   `json:"builtin,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the role is the builtin workspace admin.
func (r WorkspaceRole) IsAdmin() bool {
	return r.Builtin != nil && *r.Builtin == BuiltinWorkspaceAdmin
}

type WorkspaceMember struct {
	WorkspaceID string    `json:"workspaceId"`
	AccountID   string    `json:"accountId"`
	RoleIDs     []string  `json:"roleIds"`
	JoinedAt    time.Time `json:"joinedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WorkspaceFolderAcl struct {
	WorkspaceID string    `json:"workspaceId"`
	EntryID     string    `json:"entryId"`
	Scope       string    `json:"scope"`
	FolderID    *string   `json:"folderId,omitempty"`
	RoleIDs     []string  `json:"roleIds"`
	ReadEffect  string    `json:"readEffect"`
	WriteEffect string    `json:"writeEffect"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// References reports whether the entry names roleID.
func (a WorkspaceFolderAcl) References(roleID string) bool {
	for _, r := range a.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

type WorkspaceApiKey struct {
	WorkspaceID string     `json:"workspaceId"`
	KeyID       string     `json:"keyId"`
	Name        string     `json:"name"`
	KeyPrefix   string     `json:"keyPrefix"`
	KeyHash     string     `json:"keyHash"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the key is neither revoked nor expired at now.
func (k WorkspaceApiKey) Active(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// MissingBuiltinRoles returns the builtin roles ws lacks given its current roles.
// A workspace needs at least one admin role and its default member role.
// Callers upsert the result, so a plain role squatting on AdminRoleID is promoted.
func MissingBuiltinRoles(ws Workspace, existing []WorkspaceRole, now time.Time) []WorkspaceRole {
	hasAdmin, hasMember := false, false
	memberRole := ws.MemberRole()
	for _, r := range existing {
		if r.IsAdmin() {
			hasAdmin = true
		}
		if r.RoleID == memberRole {
			hasMember = true
		}
	}

	var missing []WorkspaceRole
	if !hasAdmin {
		admin := BuiltinWorkspaceAdmin
		missing = append(missing, WorkspaceRole{
			WorkspaceID: ws.WorkspaceID,
			RoleID:      AdminRoleID,
			Name:        "Workspace Admin",
			Builtin:     &admin,
			Permissions: append([]string(nil), AdminPermissions...),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if !hasMember && memberRole != AdminRoleID {
		missing = append(missing, WorkspaceRole{
			WorkspaceID: ws.WorkspaceID,
			RoleID:      memberRole,
			Name:        "Member",
			Permissions: append([]string(nil), MemberPermissions...),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return missing
}
