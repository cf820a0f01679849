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
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/trace"
)

// NewPostgres opens a pooled Postgres connection with optional read replicas.
// The schema, when set, is created if missing and installed as search_path.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := buildPostgresDSN(cfg.URL, cfg.Schema, cfg.SSLMode)
	if err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), newGormConfig(cfg.Output))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := trace.RegisterGormPlugin(db, "postgresql", cfg.Output); err != nil {
		return nil, fmt.Errorf("failed to register trace plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetConnMaxLifetime(GetConnMaxLifetime(cfg.ConnMaxLifetime))
	sqlDB.SetConnMaxIdleTime(GetConnMaxIdleTime(cfg.ConnMaxIdleTime))

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if cfg.Schema != "" {
		if err := db.WithContext(ctx).Exec("CREATE SCHEMA IF NOT EXISTS " + QuoteIdent(cfg.Schema)).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to create schema %s: %w", cfg.Schema, err)
		}
	}

	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, r := range cfg.Replicas {
			rdsn, err := buildPostgresDSN(r, cfg.Schema, cfg.SSLMode)
			if err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
			replicas = append(replicas, postgres.Open(rdsn))
		}
		if err := registerReplicas(db, replicas, poolSize); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to register read replicas: %w", err)
		}
	}

	log.Infow("postgres connected", "schema", cfg.Schema, "poolSize", poolSize, "replicas", len(cfg.Replicas))
	return db, nil
}

func newGormConfig(output bool) *gorm.Config {
	return &gorm.Config{
		Logger:                 defaultGormLogger(output),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
