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

package shutdown

import (
	"sync"
	"sync/atomic"
)

// Manager records that the process is draining. Readiness checks consult it
// so load balancers stop routing before listeners close.
type Manager struct {
	flag   atomic.Bool
	once   sync.Once
	done   chan struct{}
	reason atomic.Value // string
}

func NewManager() *Manager {
	return &Manager{done: make(chan struct{})}
}

func (m *Manager) IsShuttingDown() bool {
	return m.flag.Load()
}

// Shutdown marks the manager as draining. Only the first call wins and
// returns true; its reason is kept.
func (m *Manager) Shutdown(reason string) bool {
	won := false
	m.once.Do(func() {
		m.reason.Store(reason)
		m.flag.Store(true)
		close(m.done)
		won = true
	})
	return won
}

// Done is closed once Shutdown has been called. Any number of waiters may select on it.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) Reason() string {
	r, _ := m.reason.Load().(string)
	return r
}
