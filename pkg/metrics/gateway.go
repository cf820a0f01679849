package metrics

import "time"

// ObserveCAS records the outcome of one conditional write.
func (r *Registry) ObserveCAS(provider string, won bool, err error) {
	if r == nil {
		return
	}
	result := "won"
	switch {
	case err != nil:
		result = "error"
	case !won:
		result = "lost"
	}
	r.casTotal.WithLabelValues(provider, result).Inc()
}

// ObserveLockWait records how long a lease acquisition took.
func (r *Registry) ObserveLockWait(provider string, d time.Duration) {
	if r == nil {
		return
	}
	r.lockWait.WithLabelValues(provider).Observe(d.Seconds())
}

// AddMigrations counts newly applied migrations.
func (r *Registry) AddMigrations(provider string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.migrationsTotal.WithLabelValues(provider).Add(float64(n))
}

// ObserveOp records repository operation latency.
func (r *Registry) ObserveOp(provider, op string, d time.Duration) {
	if r == nil {
		return
	}
	r.opSeconds.WithLabelValues(provider, op).Observe(d.Seconds())
}

// SetReady publishes a backend readiness flag.
func (r *Registry) SetReady(kind, provider string, ready bool) {
	if r == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	r.backendReady.WithLabelValues(kind, provider).Set(v)
}
