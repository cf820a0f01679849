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

package database

import (
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// ReadDB routes the query to a replica when a resolver is registered.
// Usage: database.ReadDB(db).Find(&rows)
func ReadDB(db *gorm.DB) *gorm.DB {
	return db.Clauses(dbresolver.Read)
}

// WriteDB pins the query to the primary.
// Reads that feed a conditional write must use it so they never observe a lagging replica.
func WriteDB(db *gorm.DB) *gorm.DB {
	return db.Clauses(dbresolver.Write)
}

func registerReplicas(db *gorm.DB, replicas []gorm.Dialector, poolSize int) error {
	if len(replicas) == 0 {
		return nil
	}
	resolver := dbresolver.Register(dbresolver.Config{
		Replicas:          replicas,
		Policy:            dbresolver.RandomPolicy{},
		TraceResolverMode: true,
	}).
		SetMaxOpenConns(poolSize).
		SetMaxIdleConns(poolSize).
		SetConnMaxLifetime(defaultConnMaxLifetime)
	return db.Use(resolver)
}
