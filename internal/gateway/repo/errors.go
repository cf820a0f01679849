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

package repo

import (
	"errors"
	"fmt"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

var (
	ErrInvalidScope           = model.ErrInvalidScope
	ErrNotFound               = errors.New("not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrBackendUnavailable     = errors.New("backend unavailable")
	ErrUnsupportedProvider    = errors.New("unsupported provider")
	ErrAccountConflict        = errors.New("account already exists")
	ErrLocalLoginConflict     = errors.New("local login id already in use")
	ErrGithubIdentityConflict = errors.New("github identity already linked to another account")
	ErrTenantConflict         = errors.New("tenant already has a workspace")
	ErrKeyPrefixConflict      = errors.New("api key prefix already in use")
	ErrLockTimeout            = errors.New("timed out acquiring lock")
	ErrAggregateContention    = errors.New("workspace aggregate contention")
	ErrInvalidSearch          = errors.New("invalid account search")
	ErrRevisionConflict       = errors.New("revision conflict")
)

// UnavailableError reports a backend that is misconfigured or unreachable.
// It matches ErrBackendUnavailable under errors.Is.
type UnavailableError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s backend unavailable: %s", e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// NewUnavailable builds an *UnavailableError.
func NewUnavailable(provider, reason string, err error) *UnavailableError {
	return &UnavailableError{Provider: provider, Reason: reason, Err: err}
}

// NotFound wraps ErrNotFound with the kind and id that were missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
