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

// Package provider chooses the storage backend named by configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/wire"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/storage/docstore"
	"github.com/go-arcade/modelgate/internal/gateway/storage/instrument"
	"github.com/go-arcade/modelgate/internal/gateway/storage/postgres"
	"github.com/go-arcade/modelgate/internal/gateway/storage/sqlite"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/metrics"
)

// ProviderSet builds the instrumented backend from database.Conf.
var ProviderSet = wire.NewSet(ProvideBackend)

// Names lists the providers Select understands.
var Names = []string{sqlite.Provider, postgres.Provider, postgres.ManagedProvider, docstore.Provider}

// Select returns the backend for conf.Provider. Unknown providers yield an
// Unavailable backend rather than an error so the process can still report
// health.
func Select(conf database.Conf, reg *metrics.Registry) repo.Backend {
	name := strings.ToLower(strings.TrimSpace(conf.Provider))
	switch name {
	case sqlite.Provider:
		return sqlite.New(conf.SQLite, reg)
	case postgres.Provider:
		return postgres.New(conf.Postgres, reg)
	case postgres.ManagedProvider:
		return postgres.NewManaged(conf.Managed, reg)
	case docstore.Provider:
		return docstore.New(conf.DocStore, reg)
	default:
		return NewUnavailable(name, "unsupported provider",
			fmt.Errorf("%w: %q", repo.ErrUnsupportedProvider, conf.Provider))
	}
}

// ProvideBackend selects, instruments and, when conf.FailFast is set,
// pings the backend. The cleanup closes it.
func ProvideBackend(ctx context.Context, conf database.Conf, reg *metrics.Registry) (repo.Backend, func(), error) {
	backend := instrument.Wrap(Select(conf, reg), reg)
	cleanup := func() {
		if err := backend.Close(); err != nil {
			log.Warnw("failed to close backend", "provider", backend.Provider(), "error", err)
		}
	}
	if conf.FailFast {
		if err := backend.Ping(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	log.Infow("storage backend selected", "provider", backend.Provider(), "failFast", conf.FailFast)
	return backend, cleanup, nil
}
