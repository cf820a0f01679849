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

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// WorkspaceAccessMeta is the per-member projection read by authorization checks.
type WorkspaceAccessMeta struct {
	WorkspaceID string    `json:"workspaceId"`
	AccountID   string    `json:"accountId"`
	RoleIDs     []string  `json:"roleIds"`
	RoleHash    string    `json:"roleHash"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizeRoleIDs trims, de-duplicates and sorts role ids, dropping blanks.
func NormalizeRoleIDs(roleIDs []string) []string {
	seen := make(map[string]struct{}, len(roleIDs))
	out := make([]string, 0, len(roleIDs))
	for _, r := range roleIDs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// RoleHash is the hex SHA-256 of the normalized role ids joined by ",".
func RoleHash(roleIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(NormalizeRoleIDs(roleIDs), ",")))
	return hex.EncodeToString(sum[:])
}

// ComputeAccessMeta derives the projection row for a member. ok is false when
// the member holds no roles, in which case the row must be deleted.
func ComputeAccessMeta(member WorkspaceMember, now time.Time) (meta WorkspaceAccessMeta, ok bool) {
	roles := NormalizeRoleIDs(member.RoleIDs)
	if len(roles) == 0 {
		return WorkspaceAccessMeta{}, false
	}
	return WorkspaceAccessMeta{
		WorkspaceID: member.WorkspaceID,
		AccountID:   member.AccountID,
		RoleIDs:     roles,
		RoleHash:    RoleHash(roles),
		UpdatedAt:   now,
	}, true
}

// WithoutRole returns roleIDs minus roleID and whether anything was removed.
func WithoutRole(roleIDs []string, roleID string) ([]string, bool) {
	out := make([]string, 0, len(roleIDs))
	removed := false
	for _, r := range roleIDs {
		if r == roleID {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out, removed
}
