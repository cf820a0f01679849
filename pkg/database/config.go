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
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Conf selects a backend and carries the settings of every provider.
type Conf struct {
	Provider string                `mapstructure:"provider"`
	FailFast bool                  `mapstructure:"failFast"`
	SQLite   SQLiteConfig          `mapstructure:"sqlite"`
	Postgres PostgresConfig        `mapstructure:"postgres"`
	Managed  ManagedPostgresConfig `mapstructure:"managed"`
	DocStore DocStoreConfig        `mapstructure:"docstore"`
}

// SQLiteConfig configures the embedded SQL backend.
type SQLiteConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busyTimeout"`
	Output      bool          `mapstructure:"output"`
}

// PostgresConfig configures a networked Postgres backend.
type PostgresConfig struct {
	URL             string        `mapstructure:"url"`
	Schema          string        `mapstructure:"schema"`
	PoolSize        int           `mapstructure:"poolSize"`
	Replicas        []string      `mapstructure:"replicas"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	SSLMode         string        `mapstructure:"sslMode"`
	Output          bool          `mapstructure:"output"`
}

// ManagedPostgresConfig configures a hosted Postgres reached over TLS.
type ManagedPostgresConfig struct {
	URL      string `mapstructure:"url"`
	Schema   string `mapstructure:"schema"`
	PoolSize int    `mapstructure:"poolSize"`
}

// Postgres converts the managed settings into a PostgresConfig with TLS enforced.
func (c ManagedPostgresConfig) Postgres() PostgresConfig {
	pool := c.PoolSize
	if pool <= 0 {
		pool = 4
	}
	return PostgresConfig{
		URL:      c.URL,
		Schema:   c.Schema,
		PoolSize: pool,
		SSLMode:  "require",
	}
}

// DocStoreConfig configures the HTTP document store backend.
type DocStoreConfig struct {
	BaseURL        string        `mapstructure:"baseUrl"`
	Project        string        `mapstructure:"project"`
	APIKey         string        `mapstructure:"apiKey"`
	Database       string        `mapstructure:"database"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	LockTTL        time.Duration `mapstructure:"lockTtl"`
	LockTimeout    time.Duration `mapstructure:"lockTimeout"`
	LockPoll       time.Duration `mapstructure:"lockPoll"`
}

const (
	defaultPoolSize        = 10
	defaultBusyTimeout     = 5 * time.Second
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
)

// GetConnMaxLifetime returns d, or five minutes when unset.
func GetConnMaxLifetime(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return defaultConnMaxLifetime
}

// GetConnMaxIdleTime returns d, or one minute when unset.
func GetConnMaxIdleTime(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return defaultConnMaxIdleTime
}

// Validate reports a missing connection string.
func (c PostgresConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("postgres connection string is required")
	}
	if c.Schema != "" && !validIdentifier(c.Schema) {
		return fmt.Errorf("invalid postgres schema name %q", c.Schema)
	}
	return nil
}

// Validate reports a missing file path.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}

// Validate reports missing endpoint settings.
func (c DocStoreConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "baseUrl")
	}
	if strings.TrimSpace(c.Project) == "" {
		missing = append(missing, "project")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "apiKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("docstore config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// buildPostgresDSN adds search_path and sslmode to either a URL or a key=value DSN.
func buildPostgresDSN(dsn, schema, sslMode string) (string, error) {
	params := map[string]string{}
	if schema != "" {
		params["search_path"] = schema
	}
	if sslMode != "" {
		params["sslmode"] = sslMode
	}
	if len(params) == 0 {
		return dsn, nil
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres url: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(strings.TrimSpace(dsn))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, params[k])
	}
	return strings.TrimSpace(b.String()), nil
}

func buildSQLiteDSN(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=1&_txlock=immediate",
		path, busy.Milliseconds())
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

// QuoteIdent quotes a validated identifier for DDL.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
