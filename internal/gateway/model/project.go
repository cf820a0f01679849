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

// Package model holds the persisted entities of the gateway.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-arcade/modelgate/pkg/id"
)

// ErrInvalidScope is returned when a tenant or project id is blank.
var ErrInvalidScope = errors.New("invalid project scope")

// ProjectScope addresses one project document.
type ProjectScope struct {
	TenantID  string `json:"tenantId"`
	ProjectID string `json:"projectId"`
}

// Validate requires both ids to be non-blank and free of NUL.
func (s ProjectScope) Validate() error {
	if strings.TrimSpace(s.TenantID) == "" || strings.TrimSpace(s.ProjectID) == "" {
		return ErrInvalidScope
	}
	if strings.ContainsRune(s.TenantID, 0) || strings.ContainsRune(s.ProjectID, 0) {
		return ErrInvalidScope
	}
	return nil
}

// Key is a stable string form used for lock keys. NUL cannot appear in
// either id, so distinct scopes never share a key.
func (s ProjectScope) Key() string {
	return s.TenantID + "\x00" + s.ProjectID
}

// String is for logs and error messages.
func (s ProjectScope) String() string {
	return s.TenantID + "/" + s.ProjectID
}

// ProjectRecord is the revisioned project document.
type ProjectRecord struct {
	Scope     ProjectScope    `json:"scope"`
	Revision  string          `json:"revision"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRevision mints a fresh revision token.
func NewRevision() string {
	return id.GetULID()
}

// StateOrEmpty returns State, or an empty JSON object when unset.
func (r ProjectRecord) StateOrEmpty() json.RawMessage {
	if len(r.State) == 0 {
		return json.RawMessage(`{}`)
	}
	return r.State
}
