package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/projectlock"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlite"
	"github.com/go-arcade/modelgate/pkg/database"
)

func newBackend(t *testing.T) repo.Backend {
	t.Helper()
	a := sqlite.New(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "gateway.db")}, nil)
	t.Cleanup(func() { _ = a.Close() })
	_, err := a.Migrate(context.Background())
	require.NoError(t, err)
	return a
}

func newWorkspaceService(t *testing.T, backend repo.Backend) *WorkspaceService {
	svc := NewWorkspaceService(backend)
	svc.cost = bcrypt.MinCost
	return svc
}

var scope = model.ProjectScope{TenantID: "acme", ProjectID: "castle"}

func setCounter(n int) func(*model.StateEnvelope) error {
	return func(env *model.StateEnvelope) error {
		env.Session = json.RawMessage(`{"counter":` + strconv.Itoa(n) + `}`)
		return nil
	}
}

func TestProjectService_LoadEmpty(t *testing.T) {
	svc := NewProjectService(newBackend(t), projectlock.New(nil))

	snap, err := svc.Load(context.Background(), scope, "project.load")
	require.NoError(t, err)
	assert.Empty(t, snap.Revision)
	assert.Equal(t, model.CurrentEnvelopeVersion, snap.State.Version)
	assert.JSONEq(t, `{}`, string(snap.State.Session))
}

func TestProjectService_InvalidScope(t *testing.T) {
	svc := NewProjectService(newBackend(t), projectlock.New(nil))

	_, err := svc.Load(context.Background(), model.ProjectScope{TenantID: "acme"}, "project.load")
	assert.ErrorIs(t, err, repo.ErrInvalidScope)
	_, err = svc.Mutate(context.Background(), model.ProjectScope{ProjectID: "x"}, "project.save", setCounter(1))
	assert.ErrorIs(t, err, repo.ErrInvalidScope)
}

func TestProjectService_MutateCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newBackend(t), projectlock.New(nil))

	first, err := svc.Mutate(ctx, scope, "project.save", setCounter(1))
	require.NoError(t, err)
	require.NotEmpty(t, first.Revision)

	second, err := svc.Mutate(ctx, scope, "project.save", setCounter(2))
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	loaded, err := svc.Load(ctx, scope, "project.load")
	require.NoError(t, err)
	assert.Equal(t, second.Revision, loaded.Revision)
	assert.JSONEq(t, `{"counter":2}`, string(loaded.State.Session))
}

func TestProjectService_MutateErrorLeavesStateAlone(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newBackend(t), projectlock.New(nil))
	_, err := svc.Mutate(ctx, scope, "project.save", setCounter(1))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = svc.Mutate(ctx, scope, "project.save", func(*model.StateEnvelope) error { return boom })
	assert.ErrorIs(t, err, boom)

	loaded, err := svc.Load(ctx, scope, "project.load")
	require.NoError(t, err)
	assert.JSONEq(t, `{"counter":1}`, string(loaded.State.Session))
}

func TestProjectService_ConcurrentMutationsAllLand(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newBackend(t), projectlock.New(nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Mutate(ctx, scope, "project.save", func(env *model.StateEnvelope) error {
				var s struct{ Counter int }
				_ = json.Unmarshal(env.Session, &s)
				s.Counter++
				raw, err := json.Marshal(map[string]int{"counter": s.Counter})
				env.Session = raw
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := svc.Load(ctx, scope, "project.load")
	require.NoError(t, err)
	assert.JSONEq(t, `{"counter":8}`, string(loaded.State.Session))
}

// losingRepo reports every compare-and-swap as lost.
type losingRepo struct {
	repo.ProjectRepository
	mu    sync.Mutex
	saves int
}

func (r *losingRepo) Find(context.Context, model.ProjectScope) (*model.ProjectRecord, error) {
	return nil, nil
}

func (r *losingRepo) SaveIfRevision(context.Context, model.ProjectRecord, *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return false, nil
}

func TestProjectService_ConflictExhaustsRetries(t *testing.T) {
	stub := &losingRepo{}
	svc := &ProjectService{projects: stub, locks: projectlock.New(nil), now: utcNow}

	_, err := svc.Mutate(context.Background(), scope, "project.save", setCounter(1))
	require.ErrorIs(t, err, repo.ErrRevisionConflict)
	assert.Contains(t, err.Error(), scope.String())
	assert.Equal(t, casAttempts, stub.saves)
}

func TestProjectService_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newBackend(t), projectlock.New(nil))
	for _, id := range []string{"castle-a", "castle-b", "moat"} {
		_, err := svc.Mutate(ctx, model.ProjectScope{TenantID: "acme", ProjectID: id}, "project.save", setCounter(1))
		require.NoError(t, err)
	}

	snaps, err := svc.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.True(t, strings.HasPrefix(s.Scope.ProjectID, "castle"))
	}

	require.NoError(t, svc.Remove(ctx, model.ProjectScope{TenantID: "acme", ProjectID: "moat"}))
	loaded, err := svc.Load(ctx, model.ProjectScope{TenantID: "acme", ProjectID: "moat"}, "project.load")
	require.NoError(t, err)
	assert.Empty(t, loaded.Revision)
}

func seedAccount(t *testing.T, backend repo.Backend, id string) {
	t.Helper()
	require.NoError(t, backend.CreateAccount(context.Background(), model.Account{
		AccountID:   id,
		Email:       id + "@example.com",
		DisplayName: id,
	}))
}

func TestWorkspaceService_CreateWorkspace(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	seedAccount(t, backend, "acc_owner")
	svc := newWorkspaceService(t, backend)

	ws, err := svc.CreateWorkspace(ctx, "acme", "Acme", "acc_owner")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ws.WorkspaceID, "ws_"))
	assert.Equal(t, "acme", ws.TenantID)

	member, err := backend.GetMember(ctx, ws.WorkspaceID, "acc_owner")
	require.NoError(t, err)
	assert.Equal(t, []string{model.AdminRoleID}, member.RoleIDs)

	roles, err := backend.ListRoles(ctx, ws.WorkspaceID)
	require.NoError(t, err)
	var ids []string
	for _, r := range roles {
		ids = append(ids, r.RoleID)
	}
	assert.Contains(t, ids, model.AdminRoleID)
	assert.Contains(t, ids, model.MemberRoleID)

	_, err = svc.CreateWorkspace(ctx, "acme", "Again", "acc_owner")
	assert.ErrorIs(t, err, repo.ErrTenantConflict)
}

func TestWorkspaceService_CreateWorkspaceRejects(t *testing.T) {
	svc := newWorkspaceService(t, newBackend(t))

	_, err := svc.CreateWorkspace(context.Background(), "acme", "Acme", "acc_ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = svc.CreateWorkspace(context.Background(), " ", "Acme", "acc_ghost")
	assert.ErrorIs(t, err, repo.ErrInvalidArgument)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token  string
		prefix string
		ok     bool
	}{
		{token: "mg_abc_0123", prefix: "abc", ok: true},
		{token: "mg_a_b_c_0123", prefix: "a_b_c", ok: true},
		{token: "mg_-x-_0123", prefix: "-x-", ok: true},
		{token: "mg__0123"},
		{token: "mg_abc_"},
		{token: "mg_abc"},
		{token: "xx_abc_0123"},
		{token: ""},
	}
	for _, tt := range tests {
		prefix, ok := parseToken(tt.token)
		assert.Equal(t, tt.ok, ok, tt.token)
		assert.Equal(t, tt.prefix, prefix, tt.token)
	}
}

func TestWorkspaceService_ApiKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	seedAccount(t, backend, "acc_owner")
	svc := newWorkspaceService(t, backend)
	ws, err := svc.CreateWorkspace(ctx, "acme", "Acme", "acc_owner")
	require.NoError(t, err)

	issued, err := svc.IssueApiKey(ctx, ws.WorkspaceID, "ci", "acc_owner", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Token, "mg_"+issued.Key.KeyPrefix+"_"))
	assert.NotContains(t, issued.Key.KeyHash, issued.Token)
	require.NotNil(t, issued.Key.ExpiresAt)

	key, err := svc.VerifyApiKey(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Key.KeyID, key.KeyID)
	stored, err := backend.GetApiKey(ctx, ws.WorkspaceID, key.KeyID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt)

	_, err = svc.VerifyApiKey(ctx, issued.Token+"x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.VerifyApiKey(ctx, "mg_nosuch_0123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.VerifyApiKey(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	svc.now = func() time.Time { return utcNow().Add(2 * time.Hour) }
	_, err = svc.VerifyApiKey(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	svc.now = utcNow

	require.NoError(t, backend.RevokeApiKey(ctx, ws.WorkspaceID, key.KeyID, utcNow()))
	_, err = svc.VerifyApiKey(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestWorkspaceService_IssueApiKeyUnknownWorkspace(t *testing.T) {
	svc := newWorkspaceService(t, newBackend(t))
	_, err := svc.IssueApiKey(context.Background(), "ws_missing", "ci", "acc_owner", 0)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestWorkspaceService_LocalLogin(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	seedAccount(t, backend, "acc_ann")
	svc := newWorkspaceService(t, backend)

	assert.ErrorIs(t, svc.SetLocalPassword(ctx, "acc_ann", "ann", "short"), repo.ErrInvalidArgument)
	assert.ErrorIs(t, svc.SetLocalPassword(ctx, "acc_ann", " ", "long enough"), repo.ErrInvalidArgument)
	require.NoError(t, svc.SetLocalPassword(ctx, "acc_ann", "ann", "correct horse"))

	account, err := svc.VerifyLocalLogin(ctx, "ann", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "acc_ann", account.AccountID)

	_, err = svc.VerifyLocalLogin(ctx, "ann", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.VerifyLocalLogin(ctx, "bob", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	seedAccount(t, backend, "acc_bob")
	assert.ErrorIs(t, svc.SetLocalPassword(ctx, "acc_bob", "ann", "another one"), repo.ErrLocalLoginConflict)
}
