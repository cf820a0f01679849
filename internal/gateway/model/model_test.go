package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectScope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scope   ProjectScope
		wantErr bool
	}{
		{name: "valid", scope: ProjectScope{TenantID: "t1", ProjectID: "p1"}},
		{name: "empty tenant", scope: ProjectScope{ProjectID: "p1"}, wantErr: true},
		{name: "blank project", scope: ProjectScope{TenantID: "t1", ProjectID: "  "}, wantErr: true},
		{name: "nul in tenant", scope: ProjectScope{TenantID: "t\x001", ProjectID: "p1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScope)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjectScope_KeyIsUnambiguous(t *testing.T) {
	a := ProjectScope{TenantID: "a/b", ProjectID: "c"}
	b := ProjectScope{TenantID: "a", ProjectID: "b/c"}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), ProjectScope{TenantID: "a/b", ProjectID: "c"}.Key())
	assert.Equal(t, "a/b/c", a.String())
}

func TestNewRevision_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		r := NewRevision()
		require.False(t, seen[r])
		seen[r] = true
	}
}

func TestDecodeStateEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantVersion int
		wantSession string
		wantRes     *int
		wantAssets  bool
	}{
		{name: "empty", raw: ``, wantVersion: 1, wantSession: `{}`},
		{name: "garbage", raw: `not json`, wantVersion: 1, wantSession: `{}`},
		{name: "array root", raw: `[1,2]`, wantVersion: 1, wantSession: `{}`},
		{name: "legacy without version", raw: `{"session":{"objects":[]}}`, wantVersion: 1, wantSession: `{"objects":[]}`},
		{name: "bad version and session", raw: `{"version":"two","session":"x"}`, wantVersion: 1, wantSession: `{}`},
		{name: "fractional version", raw: `{"version":1.5}`, wantVersion: 1, wantSession: `{}`},
		{name: "full", raw: `{"version":3,"session":{"a":1},"textureResolution":1024,"textureAssets":[{"id":"t"}],"extra":true}`,
			wantVersion: 3, wantSession: `{"a":1}`, wantRes: intPtr(1024), wantAssets: true},
		{name: "negative resolution", raw: `{"textureResolution":-5}`, wantVersion: 1, wantSession: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := DecodeStateEnvelope([]byte(tt.raw))
			assert.Equal(t, tt.wantVersion, env.Version)
			assert.JSONEq(t, tt.wantSession, string(env.Session))
			assert.Equal(t, tt.wantRes, env.TextureResolution)
			assert.Equal(t, tt.wantAssets, env.TextureAssets != nil)
		})
	}
}

func TestEncodeStateEnvelope_FillsDefaults(t *testing.T) {
	out, err := EncodeStateEnvelope(&StateEnvelope{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"session":{}}`, string(out))

	env := DecodeStateEnvelope(out)
	env.Session = json.RawMessage(`{"objects":["cube"]}`)
	out, err = EncodeStateEnvelope(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"session":{"objects":["cube"]}}`, string(out))
}

func TestRoleHash(t *testing.T) {
	assert.Equal(t, RoleHash([]string{"b", "a", "a"}), RoleHash([]string{"a", "b"}))
	assert.NotEqual(t, RoleHash([]string{"a"}), RoleHash([]string{"a", "b"}))
	assert.Equal(t, "1eb7c54d52831bbfe8942af0b1c56b7409523a59ed6ca99c1174fef7eb32c1b5", RoleHash([]string{"b", "a"}))
	assert.Len(t, RoleHash(nil), 64)
}

func TestComputeAccessMeta(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	meta, ok := ComputeAccessMeta(WorkspaceMember{WorkspaceID: "ws1", AccountID: "a1", RoleIDs: []string{"r2", " r1", "r2"}}, now)
	require.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, meta.RoleIDs)
	assert.Equal(t, RoleHash([]string{"r1", "r2"}), meta.RoleHash)
	assert.Equal(t, now, meta.UpdatedAt)

	_, ok = ComputeAccessMeta(WorkspaceMember{WorkspaceID: "ws1", AccountID: "a1", RoleIDs: []string{" "}}, now)
	assert.False(t, ok)
}

func TestWithoutRole(t *testing.T) {
	out, removed := WithoutRole([]string{"a", "b", "a"}, "a")
	assert.True(t, removed)
	assert.Equal(t, []string{"b"}, out)

	out, removed = WithoutRole([]string{"b"}, "a")
	assert.False(t, removed)
	assert.Equal(t, []string{"b"}, out)
}

func TestMissingBuiltinRoles(t *testing.T) {
	now := time.Now().UTC()
	ws := Workspace{WorkspaceID: "ws1"}

	missing := MissingBuiltinRoles(ws, nil, now)
	require.Len(t, missing, 2)
	assert.True(t, missing[0].IsAdmin())
	assert.Equal(t, AdminRoleID, missing[0].RoleID)
	assert.Equal(t, MemberRoleID, missing[1].RoleID)
	assert.Nil(t, missing[1].Builtin)

	assert.Empty(t, MissingBuiltinRoles(ws, missing, now))

	custom := Workspace{WorkspaceID: "ws1", DefaultMemberRoleID: "viewer"}
	missing = MissingBuiltinRoles(custom, []WorkspaceRole{missingAdmin(now)}, now)
	require.Len(t, missing, 1)
	assert.Equal(t, "viewer", missing[0].RoleID)
}

func missingAdmin(now time.Time) WorkspaceRole {
	b := BuiltinWorkspaceAdmin
	return WorkspaceRole{WorkspaceID: "ws1", RoleID: "owners", Builtin: &b, CreatedAt: now}
}

func TestWorkspaceApiKey_Active(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	assert.True(t, WorkspaceApiKey{}.Active(now))
	assert.True(t, WorkspaceApiKey{ExpiresAt: &future}.Active(now))
	assert.False(t, WorkspaceApiKey{ExpiresAt: &past}.Active(now))
	assert.False(t, WorkspaceApiKey{RevokedAt: &past}.Active(now))
}

func TestNormalizeServiceSettings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(*ServiceSettings)
	}{
		{name: "empty", raw: ``, want: func(s *ServiceSettings) {}},
		{name: "garbage", raw: `{{`, want: func(s *ServiceSettings) {}},
		{
			name: "legacy flat keys",
			raw:  `{"smtpHost":"mail.example.com","smtpPort":"2525","smtpUser":"bot","smtpPassword":"pw","smtpFrom":"bot@example.com","githubClientId":"cid","githubClientSecret":"sec","githubCallbackUrl":"https://x/cb"}`,
			want: func(s *ServiceSettings) {
				s.SMTP = SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 2525, Username: "bot", Password: "pw", FromAddress: "bot@example.com", Security: "starttls"}
				s.OAuth.Github = GithubOAuthSettings{Enabled: true, ClientID: "cid", ClientSecret: "sec", CallbackURL: "https://x/cb"}
			},
		},
		{
			name: "nested with invalid values",
			raw:  `{"smtp":{"enabled":false,"host":" smtp.example.com ","port":99999,"security":"SSL"},"oauth":{"github":{"enabled":"true"}}}`,
			want: func(s *ServiceSettings) {
				s.SMTP.Host = "smtp.example.com"
				s.SMTP.Security = "tls"
				s.OAuth.Github.Enabled = true
			},
		},
		{
			name: "nested wins over legacy",
			raw:  `{"smtp":{"host":"new"},"smtpHost":"old"}`,
			want: func(s *ServiceSettings) {
				s.SMTP.Enabled = true
				s.SMTP.Host = "new"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := DefaultServiceSettings()
			tt.want(&want)
			assert.Equal(t, want, NormalizeServiceSettings([]byte(tt.raw)))
		})
	}
}

func TestServiceSettings_NormalizedIdempotent(t *testing.T) {
	s := ServiceSettings{SMTP: SMTPSettings{Port: -1, Security: "bogus"}}.Normalized()
	assert.Equal(t, DefaultSMTPPort, s.SMTP.Port)
	assert.Equal(t, DefaultSMTPSecurity, s.SMTP.Security)
	assert.Equal(t, s, s.Normalized())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, s, NormalizeServiceSettings(raw))
}

func intPtr(n int) *int { return &n }
