package sqlrepo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
)

// violationDialect treats every error as a unique violation carrying its message.
type violationDialect struct{}

func (violationDialect) Name() string { return "stub" }
func (violationDialect) InsertProjectIfAbsent(*gorm.DB, *ProjectRow) (bool, error) {
	return false, nil
}
func (violationDialect) UpdateProjectIfRevision(*gorm.DB, *ProjectRow, string) (bool, error) {
	return false, nil
}
func (violationDialect) UniqueViolation(err error) (string, bool) { return err.Error(), true }
func (violationDialect) Lower(col string) string                 { return "LOWER(" + col + ")" }
func (violationDialect) NameOrder() string                       { return "display_name, account_id" }
func (violationDialect) Primary(db *gorm.DB) *gorm.DB            { return db }
func (violationDialect) Replica(db *gorm.DB) *gorm.DB            { return db }

func TestStore_Conflict(t *testing.T) {
	s := New(nil, violationDialect{})
	tests := []struct {
		detail string
		want   error
	}{
		{"UNIQUE constraint failed: accounts.local_login_id", repo.ErrLocalLoginConflict},
		{"ux_accounts_github_user_id", repo.ErrGithubIdentityConflict},
		{"UNIQUE constraint failed: workspaces.tenant_id", repo.ErrTenantConflict},
		{"ux_workspace_api_keys_key_prefix", repo.ErrKeyPrefixConflict},
		{"UNIQUE constraint failed: accounts.account_id", repo.ErrAccountConflict},
		{"accounts_pkey", repo.ErrAccountConflict},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			assert.ErrorIs(t, s.conflict(errors.New(tt.detail)), tt.want)
		})
	}

	other := errors.New("workspace_members_pkey")
	assert.Same(t, other, s.conflict(other))
	assert.NoError(t, s.conflict(nil))
}

func TestLikeEscaper(t *testing.T) {
	assert.Equal(t, `100\%`, likeEscaper.Replace("100%"))
	assert.Equal(t, `a\_b`, likeEscaper.Replace("a_b"))
	assert.Equal(t, `c:\\dir`, likeEscaper.Replace(`c:\dir`))
}

func TestRequired(t *testing.T) {
	assert.NoError(t, required("workspace id", "ws1"))
	assert.ErrorIs(t, required("workspace id", "ws1", "role id", "  "), repo.ErrInvalidArgument)
}
