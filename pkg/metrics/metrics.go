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

package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a prometheus registry and the gateway collectors registered on it.
// A nil *Registry is valid and records nothing.
type Registry struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	casTotal        *prometheus.CounterVec
	lockWait        *prometheus.HistogramVec
	migrationsTotal *prometheus.CounterVec
	opSeconds       *prometheus.HistogramVec
	backendReady    *prometheus.GaugeVec
}

// New creates a registry with the Go and process collectors plus the gateway metrics.
func New() *Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: registry,
		casTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modelgate_cas_total",
			Help: "Compare-and-swap project writes by outcome",
		}, []string{"provider", "result"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modelgate_lock_wait_seconds",
			Help:    "Time spent acquiring a lease lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"provider"}),
		migrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modelgate_migrations_applied_total",
			Help: "Migrations applied since process start",
		}, []string{"provider"}),
		opSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "modelgate_repository_op_seconds",
			Help:    "Repository operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		backendReady: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modelgate_backend_ready",
			Help: "1 when the backend reported ready on the last health check",
		}, []string{"kind", "provider"}),
	}
	registry.MustRegister(r.casTotal, r.lockWait, r.migrationsTotal, r.opSeconds, r.backendReady)
	return r
}

// RegisterCollector adds an extra collector.
func (r *Registry) RegisterCollector(c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.registry.Register(c); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}
	return nil
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
