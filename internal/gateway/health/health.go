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

// Package health reports whether the database backend and the blob store can
// serve. Checks never panic and never return errors: a failure becomes an
// unready Report with a reason.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/wire"
	"golang.org/x/sync/errgroup"

	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/safe"
	"github.com/go-arcade/modelgate/pkg/storage"
)

var ProviderSet = wire.NewSet(NewChecker, NewMonitor)

// State is the tri-state outcome of a probe.
type State string

const (
	StateReady   State = "ready"
	StateUnready State = "unready"
	// StateUnknown means no probe has finished yet, or the last one timed out.
	StateUnknown State = "unknown"
)

const (
	KindDatabase = "database"
	KindStorage  = "storage"
)

// Report describes one category.
type Report struct {
	Provider string            `json:"provider"`
	State    State             `json:"state"`
	Ready    bool              `json:"ready"`
	Reason   string            `json:"reason,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Status is the combined report served at /readyz.
type Status struct {
	Database  Report    `json:"database"`
	Storage   Report    `json:"storage"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Ready is true only when both categories are ready.
func (s Status) Ready() bool {
	return s.Database.Ready && s.Storage.Ready
}

// Conf controls probing.
type Conf struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 5 * time.Second
)

// SetDefaults fills unset durations.
func (c *Conf) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func ready(provider string, details map[string]string) Report {
	return Report{Provider: provider, State: StateReady, Ready: true, Details: details}
}

func unready(provider, reason string, err error) Report {
	r := Report{Provider: provider, State: StateUnready, Reason: reason}
	if err != nil {
		r.Details = map[string]string{"error": err.Error()}
	}
	return r
}

func unknown(provider, reason string) Report {
	return Report{Provider: provider, State: StateUnknown, Reason: reason}
}

// Checker probes the backend and the blob store.
type Checker struct {
	backend    repo.Backend
	prober     storage.Prober
	storage    string
	storageErr error
	timeout    time.Duration
	metrics    *metrics.Registry
}

// NewChecker never fails: a blob store that cannot be configured is reported
// unready on every check.
func NewChecker(backend repo.Backend, storeConf storage.Conf, conf Conf, reg *metrics.Registry) *Checker {
	conf.SetDefaults()
	c := &Checker{backend: backend, timeout: conf.Timeout, metrics: reg, storage: storeConf.Provider}
	if c.storage == "" {
		c.storage = storage.StorageLocal
	}
	prober, err := storage.New(storeConf)
	if err != nil {
		log.Warnw("blob storage misconfigured", "provider", c.storage, "error", err)
		c.storageErr = err
	} else {
		c.prober = prober
		c.storage = prober.Provider()
	}
	return c
}

// Check runs both probes concurrently under the configured timeout.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var status Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status.Database = c.probe(gctx, c.backend.Provider(), c.checkDatabase)
		return nil
	})
	g.Go(func() error {
		status.Storage = c.probe(gctx, c.storage, c.checkStorage)
		return nil
	})
	_ = g.Wait()
	status.CheckedAt = time.Now().UTC()

	c.metrics.SetReady(KindDatabase, status.Database.Provider, status.Database.Ready)
	c.metrics.SetReady(KindStorage, status.Storage.Provider, status.Storage.Ready)
	return status
}

func (c *Checker) probe(ctx context.Context, provider string, fn func(context.Context) Report) (r Report) {
	err := safe.Call(func() error {
		r = fn(ctx)
		return nil
	})
	if err != nil {
		log.Errorw("health probe panicked", "provider", provider, "error", err)
		return unready(provider, "probe panicked", err)
	}
	return r
}

func (c *Checker) checkDatabase(ctx context.Context) Report {
	provider := c.backend.Provider()
	err := c.backend.Ping(ctx)
	if err == nil {
		return ready(provider, nil)
	}
	var unavailable *repo.UnavailableError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return unknown(provider, fmt.Sprintf("no answer within %s", c.timeout))
	case errors.As(err, &unavailable):
		return unready(provider, unavailable.Reason, unavailable.Err)
	default:
		return unready(provider, "ping failed", err)
	}
}

func (c *Checker) checkStorage(ctx context.Context) Report {
	if c.storageErr != nil {
		return unready(c.storage, "misconfigured", c.storageErr)
	}
	details := map[string]string{"location": c.prober.Location()}
	err := c.prober.Probe(ctx)
	switch {
	case err == nil:
		return ready(c.storage, details)
	case errors.Is(err, context.DeadlineExceeded):
		return unknown(c.storage, fmt.Sprintf("no answer within %s", c.timeout))
	default:
		r := unready(c.storage, "probe failed", err)
		r.Details["location"] = details["location"]
		return r
	}
}
