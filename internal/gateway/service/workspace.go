package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/id"
	"github.com/go-arcade/modelgate/pkg/log"
)

const (
	apiKeyScheme = "mg"
	// prefixAttempts bounds retries when a freshly drawn key prefix collides.
	prefixAttempts = 3
	minPassword    = 8
)

// WorkspaceService holds the workspace workflows that span several repository calls.
type WorkspaceService struct {
	store repo.WorkspaceRepository
	now   func() time.Time
	cost  int
}

func NewWorkspaceService(store repo.Backend) *WorkspaceService {
	return &WorkspaceService{store: store, now: utcNow, cost: bcrypt.DefaultCost}
}

// CreateWorkspace creates the tenant's workspace with its builtin roles and
// makes creatorID its first admin.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, tenantID, name, creatorID string) (*model.Workspace, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("tenant and name are required: %w", repo.ErrInvalidArgument)
	}
	if _, err := s.store.GetAccount(ctx, creatorID); err != nil {
		return nil, fmt.Errorf("workspace creator: %w", err)
	}
	if existing, err := s.store.GetWorkspaceByTenant(ctx, tenantID); err == nil {
		return nil, fmt.Errorf("tenant %q has workspace %s: %w", tenantID, existing.WorkspaceID, repo.ErrTenantConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	ws := model.Workspace{
		WorkspaceID:         "ws_" + id.GetXid(),
		TenantID:            tenantID,
		Name:                name,
		DefaultMemberRoleID: model.MemberRoleID,
		CreatedBy:           creatorID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.UpsertWorkspace(ctx, ws); err != nil {
		return nil, err
	}
	err := s.store.UpsertMember(ctx, model.WorkspaceMember{
		WorkspaceID: ws.WorkspaceID,
		AccountID:   creatorID,
		RoleIDs:     []string{model.AdminRoleID},
		JoinedAt:    now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("add creator to %s: %w", ws.WorkspaceID, err)
	}
	log.Infow("workspace created", "workspaceId", ws.WorkspaceID, "tenantId", tenantID, "createdBy", creatorID)
	return s.store.GetWorkspace(ctx, ws.WorkspaceID)
}

// IssuedApiKey carries the stored key and the plaintext token, which is never
// persisted and cannot be recovered later.
type IssuedApiKey struct {
	Key   model.WorkspaceApiKey
	Token string
}

// IssueApiKey mints a key of the form mg_<prefix>_<secret>. A ttl of zero
// means the key does not expire.
func (s *WorkspaceService) IssueApiKey(ctx context.Context, workspaceID, name, createdBy string, ttl time.Duration) (*IssuedApiKey, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	now := s.now()
	var expires *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expires = &t
	}

	for attempt := 0; attempt < prefixAttempts; attempt++ {
		prefix := id.ShortId()
		token := fmt.Sprintf("%s_%s_%s", apiKeyScheme, prefix, id.GetUUIDWithoutDashes())
		hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cost)
		if err != nil {
			return nil, fmt.Errorf("hash api key: %w", err)
		}
		key := model.WorkspaceApiKey{
			WorkspaceID: workspaceID,
			KeyID:       "key_" + id.GetXid(),
			Name:        name,
			KeyPrefix:   prefix,
			KeyHash:     string(hash),
			CreatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   expires,
		}
		err = s.store.UpsertApiKey(ctx, key)
		if errors.Is(err, repo.ErrKeyPrefixConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &IssuedApiKey{Key: key, Token: token}, nil
	}
	return nil, fmt.Errorf("no free key prefix after %d attempts: %w", prefixAttempts, repo.ErrKeyPrefixConflict)
}

// parseToken splits mg_<prefix>_<secret>. The secret never contains '_',
// the prefix may.
func parseToken(token string) (prefix string, ok bool) {
	rest, found := strings.CutPrefix(token, apiKeyScheme+"_")
	if !found {
		return "", false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	return rest[:i], true
}

// VerifyApiKey resolves a presented token to its active key and records the use.
func (s *WorkspaceService) VerifyApiKey(ctx context.Context, token string) (*model.WorkspaceApiKey, error) {
	prefix, ok := parseToken(token)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	key, err := s.store.FindApiKeyByPrefix(ctx, prefix)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(token)) != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	if !key.Active(now) {
		return nil, fmt.Errorf("api key %s is revoked or expired: %w", key.KeyID, ErrInvalidCredentials)
	}
	if err := s.store.TouchApiKey(ctx, key.WorkspaceID, key.KeyID, now); err != nil {
		log.WithContext(ctx).Warnw("failed to record api key use", "keyId", key.KeyID, "error", err)
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

// SetLocalPassword assigns a local login id and password to an account.
func (s *WorkspaceService) SetLocalPassword(ctx context.Context, accountID, loginID, password string) error {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return fmt.Errorf("login id is required: %w", repo.ErrInvalidArgument)
	}
	if len(password) < minPassword {
		return fmt.Errorf("password shorter than %d characters: %w", minPassword, repo.ErrInvalidArgument)
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	h := string(hash)
	account.LocalLoginID = &loginID
	account.PasswordHash = &h
	account.UpdatedAt = s.now()
	return s.store.UpsertAccount(ctx, *account)
}

// VerifyLocalLogin returns the account when loginID and password match.
func (s *WorkspaceService) VerifyLocalLogin(ctx context.Context, loginID, password string) (*model.Account, error) {
	account, err := s.store.GetAccountByLocalLoginID(ctx, strings.TrimSpace(loginID))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if account.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}
