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

// Package migrate applies an ordered list of idempotent schema migrations and
// records each one in a ledger keyed by a stable string id.
package migrate

import (
	"context"
	"fmt"

	"github.com/go-arcade/modelgate/pkg/log"
)

// Stable migration ids shared by every backend.
const (
	ProjectRecords         = "0001_project_records"
	WorkspaceRBAC          = "0002_workspace_rbac"
	WorkspaceAccessMeta    = "0003_workspace_access_meta"
	WorkspaceApiKeys       = "0004_workspace_api_keys"
	ServiceSettings        = "0005_service_settings"
	AccountIdentityIndexes = "0006_account_identity_indexes"
)

// IDs lists every migration id in apply order.
var IDs = []string{
	ProjectRecords,
	WorkspaceRBAC,
	WorkspaceAccessMeta,
	WorkspaceApiKeys,
	ServiceSettings,
	AccountIdentityIndexes,
}

// LegacyID maps a version number from the old integer ledger to its stable id.
func LegacyID(version int) (string, bool) {
	switch version {
	case 1:
		return ProjectRecords, true
	case 2:
		return WorkspaceRBAC, true
	case 3:
		return WorkspaceAccessMeta, true
	case 4:
		return WorkspaceApiKeys, true
	case 5:
		return ServiceSettings, true
	case 6:
		return AccountIdentityIndexes, true
	default:
		return "", false
	}
}

// Migration is one forward step executed against E, the backend's executor
// (a transaction for SQL, a client for the document store).
type Migration[E any] struct {
	ID string
	Up func(ctx context.Context, exec E) error
}

// Ledger records which migrations ran.
type Ledger[E any] interface {
	// Prepare creates the ledger and upgrades a legacy integer ledger in place.
	Prepare(ctx context.Context) error
	Applied(ctx context.Context) (map[string]bool, error)
	// Apply runs m and records its id so that neither happens without the other
	// as far as the backend allows.
	Apply(ctx context.Context, m Migration[E]) error
}

// Run prepares the ledger and applies every pending migration in order.
// It returns the ids applied by this call.
func Run[E any](ctx context.Context, ledger Ledger[E], migrations []Migration[E]) ([]string, error) {
	if err := validate(migrations); err != nil {
		return nil, err
	}
	if err := ledger.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare migration ledger: %w", err)
	}
	applied, err := ledger.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}

	known := make(map[string]bool, len(migrations))
	var done []string
	for _, m := range migrations {
		known[m.ID] = true
		if applied[m.ID] {
			continue
		}
		if err := ledger.Apply(ctx, m); err != nil {
			return done, fmt.Errorf("apply migration %s: %w", m.ID, err)
		}
		log.Infow("migration applied", "id", m.ID)
		done = append(done, m.ID)
	}
	for id := range applied {
		if !known[id] {
			log.Warnw("ledger holds a migration this build does not know", "id", id)
		}
	}
	return done, nil
}

func validate[E any](migrations []Migration[E]) error {
	seen := make(map[string]bool, len(migrations))
	for i, m := range migrations {
		if m.ID == "" || m.Up == nil {
			return fmt.Errorf("migration %d is incomplete", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate migration id %s", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}
