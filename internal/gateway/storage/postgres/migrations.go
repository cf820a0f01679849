package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/storage/migrate"
)

// Migrations is the Postgres schema in apply order.
func Migrations() []migrate.Migration[*gorm.DB] {
	return []migrate.Migration[*gorm.DB]{
		{ID: migrate.ProjectRecords, Up: execAll(
			`CREATE TABLE IF NOT EXISTS project_records (
				tenant_id  TEXT NOT NULL,
				project_id TEXT NOT NULL,
				revision   TEXT NOT NULL,
				state      JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (tenant_id, project_id)
			)`,
		)},
		{ID: migrate.WorkspaceRBAC, Up: execAll(
			`CREATE TABLE IF NOT EXISTS accounts (
				account_id     TEXT PRIMARY KEY,
				email          TEXT NOT NULL DEFAULT '',
				display_name   TEXT NOT NULL DEFAULT '',
				system_roles   JSONB NOT NULL DEFAULT '[]'::jsonb,
				local_login_id TEXT,
				password_hash  TEXT,
				created_at     TIMESTAMPTZ NOT NULL,
				updated_at     TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS workspaces (
				workspace_id           TEXT PRIMARY KEY,
				tenant_id              TEXT NOT NULL,
				name                   TEXT NOT NULL DEFAULT '',
				default_member_role_id TEXT NOT NULL DEFAULT 'role_workspace_member',
				created_by             TEXT NOT NULL DEFAULT '',
				created_at             TIMESTAMPTZ NOT NULL,
				updated_at             TIMESTAMPTZ NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_workspaces_tenant_id ON workspaces (tenant_id)`,
			`CREATE TABLE IF NOT EXISTS workspace_roles (
				workspace_id TEXT NOT NULL,
				role_id      TEXT NOT NULL,
				name         TEXT NOT NULL DEFAULT '',
				builtin      TEXT,
				permissions  JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at   TIMESTAMPTZ NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (workspace_id, role_id)
			)`,
			`CREATE TABLE IF NOT EXISTS workspace_members (
				workspace_id TEXT NOT NULL,
				account_id   TEXT NOT NULL,
				role_ids     JSONB NOT NULL DEFAULT '[]'::jsonb,
				joined_at    TIMESTAMPTZ NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (workspace_id, account_id)
			)`,
			`CREATE INDEX IF NOT EXISTS ix_workspace_members_account_id ON workspace_members (account_id)`,
			`CREATE TABLE IF NOT EXISTS workspace_folder_acl (
				workspace_id TEXT NOT NULL,
				entry_id     TEXT NOT NULL,
				scope        TEXT NOT NULL CHECK (scope IN ('workspace', 'folder')),
				folder_id    TEXT,
				role_ids     JSONB NOT NULL DEFAULT '[]'::jsonb,
				read_effect  TEXT NOT NULL DEFAULT 'inherit',
				write_effect TEXT NOT NULL DEFAULT 'inherit',
				updated_at   TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (workspace_id, entry_id)
			)`,
		)},
		{ID: migrate.WorkspaceAccessMeta, Up: execAll(
			`CREATE TABLE IF NOT EXISTS workspace_access_meta (
				workspace_id TEXT NOT NULL,
				account_id   TEXT NOT NULL,
				role_ids     JSONB NOT NULL DEFAULT '[]'::jsonb,
				role_hash    TEXT NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (workspace_id, account_id)
			)`,
			`CREATE INDEX IF NOT EXISTS ix_workspace_access_meta_account_id ON workspace_access_meta (account_id)`,
		)},
		{ID: migrate.WorkspaceApiKeys, Up: execAll(
			`CREATE TABLE IF NOT EXISTS workspace_api_keys (
				workspace_id TEXT NOT NULL,
				key_id       TEXT NOT NULL,
				name         TEXT NOT NULL DEFAULT '',
				key_prefix   TEXT NOT NULL,
				key_hash     TEXT NOT NULL,
				created_by   TEXT NOT NULL DEFAULT '',
				created_at   TIMESTAMPTZ NOT NULL,
				updated_at   TIMESTAMPTZ NOT NULL,
				last_used_at TIMESTAMPTZ,
				expires_at   TIMESTAMPTZ,
				revoked_at   TIMESTAMPTZ,
				PRIMARY KEY (workspace_id, key_id)
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_workspace_api_keys_key_prefix ON workspace_api_keys (key_prefix)`,
		)},
		{ID: migrate.ServiceSettings, Up: execAll(
			`CREATE TABLE IF NOT EXISTS service_settings (
				settings_id TEXT PRIMARY KEY,
				payload     JSONB NOT NULL,
				updated_at  TIMESTAMPTZ NOT NULL
			)`,
		)},
		{ID: migrate.AccountIdentityIndexes, Up: execAll(
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS github_user_id TEXT`,
			`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS github_login TEXT`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_local_login_id ON accounts (local_login_id) WHERE local_login_id IS NOT NULL`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_github_user_id ON accounts (github_user_id) WHERE github_user_id IS NOT NULL`,
		)},
	}
}

func execAll(stmts ...string) func(context.Context, *gorm.DB) error {
	return func(_ context.Context, tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	}
}
