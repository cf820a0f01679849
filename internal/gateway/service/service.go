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

package service

import (
	"errors"
	"time"

	"github.com/google/wire"

	"github.com/go-arcade/modelgate/internal/gateway/projectlock"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

var ProviderSet = wire.NewSet(
	ProvideProjectLocks,
	NewProjectService,
	NewWorkspaceService,
	NewServices,
)

// ErrInvalidCredentials covers unknown keys, wrong secrets and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Services groups the service layer for the composition root.
type Services struct {
	Projects   *ProjectService
	Workspaces *WorkspaceService
}

func NewServices(projects *ProjectService, workspaces *WorkspaceService) *Services {
	return &Services{Projects: projects, Workspaces: workspaces}
}

func ProvideProjectLocks(reg *metrics.Registry) *projectlock.Manager {
	return projectlock.New(reg)
}

func utcNow() time.Time { return time.Now().UTC() }
