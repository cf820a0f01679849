package docstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-arcade/modelgate/internal/gateway/model"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/id"
)

func (a *Adapter) UpsertFolderAcl(ctx context.Context, acl model.WorkspaceFolderAcl) (model.WorkspaceFolderAcl, error) {
	if err := required("workspace id", acl.WorkspaceID); err != nil {
		return acl, err
	}
	if acl.EntryID == "" {
		acl.EntryID = id.GetXid()
	}
	acl.RoleIDs = orEmpty(acl.RoleIDs)
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if _, err := g.workspace(acl.WorkspaceID); err != nil {
			return err
		}
		acl.UpdatedAt = now
		g.folderAcl(acl.WorkspaceID)[acl.EntryID] = acl
		return nil
	})
	if err != nil {
		return acl, fmt.Errorf("upsert folder acl %s/%s: %w", acl.WorkspaceID, acl.EntryID, err)
	}
	return acl, nil
}

func (a *Adapter) ListFolderAcl(ctx context.Context, workspaceID string) ([]model.WorkspaceFolderAcl, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkspaceFolderAcl, 0, len(g.FolderAcl[workspaceID]))
	for _, acl := range g.FolderAcl[workspaceID] {
		out = append(out, acl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (a *Adapter) RemoveFolderAcl(ctx context.Context, workspaceID, entryID string) error {
	err := a.mutate(ctx, func(g *aggregate, _ time.Time) error {
		delete(g.FolderAcl[workspaceID], entryID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove folder acl %s/%s: %w", workspaceID, entryID, err)
	}
	return nil
}

func (a *Adapter) UpsertApiKey(ctx context.Context, key model.WorkspaceApiKey) error {
	if err := required("workspace id", key.WorkspaceID, "key id", key.KeyID, "key prefix", key.KeyPrefix); err != nil {
		return err
	}
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		if _, err := g.workspace(key.WorkspaceID); err != nil {
			return err
		}
		for wsID, keys := range g.ApiKeys {
			for keyID, other := range keys {
				if other.KeyPrefix == key.KeyPrefix && (wsID != key.WorkspaceID || keyID != key.KeyID) {
					return fmt.Errorf("%w: %s", repo.ErrKeyPrefixConflict, key.KeyPrefix)
				}
			}
		}
		keys := g.apiKeys(key.WorkspaceID)
		k := key
		k.UpdatedAt = now
		k.LastUsedAt, k.ExpiresAt, k.RevokedAt = utc(k.LastUsedAt), utc(k.ExpiresAt), utc(k.RevokedAt)
		if prev, ok := keys[k.KeyID]; ok {
			k.CreatedBy = prev.CreatedBy
			k.CreatedAt = prev.CreatedAt
		} else if k.CreatedAt.IsZero() {
			k.CreatedAt = now
		}
		k.CreatedAt = k.CreatedAt.UTC()
		keys[k.KeyID] = k
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert api key %s/%s: %w", key.WorkspaceID, key.KeyID, err)
	}
	return nil
}

func (a *Adapter) GetApiKey(ctx context.Context, workspaceID, keyID string) (*model.WorkspaceApiKey, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	k, ok := g.ApiKeys[workspaceID][keyID]
	if !ok {
		return nil, repo.NotFound("api key", workspaceID+"/"+keyID)
	}
	return &k, nil
}

func (a *Adapter) FindApiKeyByPrefix(ctx context.Context, prefix string) (*model.WorkspaceApiKey, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, keys := range g.ApiKeys {
		for _, k := range keys {
			if k.KeyPrefix == prefix {
				return &k, nil
			}
		}
	}
	return nil, repo.NotFound("api key", prefix)
}

func (a *Adapter) ListApiKeys(ctx context.Context, workspaceID string) ([]model.WorkspaceApiKey, error) {
	g, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkspaceApiKey, 0, len(g.ApiKeys[workspaceID]))
	for _, k := range g.ApiKeys[workspaceID] {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].KeyID < out[j].KeyID
	})
	return out, nil
}

func (a *Adapter) TouchApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	return a.updateApiKey(ctx, workspaceID, keyID, func(k *model.WorkspaceApiKey, _ time.Time) {
		k.LastUsedAt = utc(&at)
	})
}

func (a *Adapter) RevokeApiKey(ctx context.Context, workspaceID, keyID string, at time.Time) error {
	return a.updateApiKey(ctx, workspaceID, keyID, func(k *model.WorkspaceApiKey, now time.Time) {
		k.RevokedAt = utc(&at)
		k.UpdatedAt = now
	})
}

func (a *Adapter) updateApiKey(ctx context.Context, workspaceID, keyID string, apply func(k *model.WorkspaceApiKey, now time.Time)) error {
	err := a.mutate(ctx, func(g *aggregate, now time.Time) error {
		k, ok := g.ApiKeys[workspaceID][keyID]
		if !ok {
			return repo.NotFound("api key", workspaceID+"/"+keyID)
		}
		apply(&k, now)
		g.ApiKeys[workspaceID][keyID] = k
		return nil
	})
	if err != nil {
		return fmt.Errorf("update api key %s/%s: %w", workspaceID, keyID, err)
	}
	return nil
}

func (a *Adapter) RemoveApiKey(ctx context.Context, workspaceID, keyID string) error {
	err := a.mutate(ctx, func(g *aggregate, _ time.Time) error {
		delete(g.ApiKeys[workspaceID], keyID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove api key %s/%s: %w", workspaceID, keyID, err)
	}
	return nil
}
