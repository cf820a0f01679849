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

// Package sqlrepo implements both repository ports on gorm. The embedded and
// networked SQL adapters share it and differ only in their Dialect.
package sqlrepo

import "gorm.io/gorm"

// Dialect carries the statements that differ between SQL engines.
type Dialect interface {
	// Name is the provider name used in errors and metrics.
	Name() string
	// InsertProjectIfAbsent inserts row unless the scope exists and reports whether it did.
	InsertProjectIfAbsent(tx *gorm.DB, row *ProjectRow) (bool, error)
	// UpdateProjectIfRevision overwrites row only if the stored revision equals expected.
	UpdateProjectIfRevision(tx *gorm.DB, row *ProjectRow, expected string) (bool, error)
	// UniqueViolation reports whether err is a unique constraint failure and
	// returns the constraint or column text the engine named.
	UniqueViolation(err error) (string, bool)
	// Lower wraps col in a Unicode-aware lowercase function.
	Lower(col string) string
	// NameOrder is the ORDER BY clause for the name sort.
	NameOrder() string
	// Primary pins a statement to the writable node.
	Primary(db *gorm.DB) *gorm.DB
	// Replica lets a statement use a read replica when one is configured.
	Replica(db *gorm.DB) *gorm.DB
}
