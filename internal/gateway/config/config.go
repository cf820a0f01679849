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

package config

import (
	"github.com/google/wire"

	"github.com/go-arcade/modelgate/internal/gateway/health"
	"github.com/go-arcade/modelgate/pkg/conf"
	"github.com/go-arcade/modelgate/pkg/database"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/server"
	"github.com/go-arcade/modelgate/pkg/storage"
	"github.com/go-arcade/modelgate/pkg/trace"
)

// EnvPrefix prefixes every environment override, e.g. MODELGATE_DATABASE_PROVIDER.
const EnvPrefix = "MODELGATE"

var ProviderSet = wire.NewSet(
	ProvideDatabase,
	ProvideStorage,
	ProvideHealth,
	ProvideHttp,
)

// AppConfig is the whole gateway configuration.
type AppConfig struct {
	Log      log.Conf      `mapstructure:"log"`
	Database database.Conf `mapstructure:"database"`
	Storage  storage.Conf  `mapstructure:"storage"`
	Http     server.Http   `mapstructure:"http"`
	Health   health.Conf   `mapstructure:"health"`
	Trace    trace.Conf    `mapstructure:"trace"`
}

// defaults lists every key so environment variables can override keys absent from the file.
func defaults() map[string]any {
	l := log.SetDefaults()
	return map[string]any{
		"log.output":     l.Output,
		"log.path":       l.Path,
		"log.filename":   l.Filename,
		"log.level":      l.Level,
		"log.keepDays":   l.KeepDays,
		"log.rotateSize": l.RotateSize,
		"log.rotateNum":  l.RotateNum,

		"database.provider":                 "sqlite",
		"database.failFast":                 false,
		"database.sqlite.path":              "./data/modelgate.db",
		"database.sqlite.busyTimeout":       "5s",
		"database.sqlite.output":            false,
		"database.postgres.url":             "",
		"database.postgres.schema":          "",
		"database.postgres.poolSize":        10,
		"database.postgres.replicas":        []string{},
		"database.postgres.connMaxLifetime": "5m",
		"database.postgres.connMaxIdleTime": "1m",
		"database.postgres.sslMode":         "",
		"database.postgres.output":          false,
		"database.managed.url":              "",
		"database.managed.schema":           "",
		"database.managed.poolSize":         4,
		"database.docstore.baseUrl":         "",
		"database.docstore.project":         "",
		"database.docstore.apiKey":          "",
		"database.docstore.database":        "(default)",
		"database.docstore.requestTimeout":  "10s",
		"database.docstore.lockTtl":         "30s",
		"database.docstore.lockTimeout":     "10s",
		"database.docstore.lockPoll":        "100ms",

		"storage.provider":     "local",
		"storage.local.path":   "./data",
		"storage.s3.endpoint":  "",
		"storage.s3.bucket":    "",
		"storage.s3.region":    "",
		"storage.s3.accessKey": "",
		"storage.s3.secretKey": "",
		"storage.s3.useTLS":    true,

		"http.host":            "0.0.0.0",
		"http.port":            8081,
		"http.accessLog":       false,
		"http.readTimeout":     "10s",
		"http.writeTimeout":    "10s",
		"http.idleTimeout":     "60s",
		"http.shutdownTimeout": "15s",
		"http.pprof.enable":    false,
		"http.pprof.prefix":    "",

		"health.interval": "30s",
		"health.timeout":  "5s",

		"trace.enabled":        false,
		"trace.endpoint":       "",
		"trace.protocol":       "http",
		"trace.serviceName":    "modelgate",
		"trace.serviceVersion": "",
		"trace.insecure":       true,
		"trace.batchTimeout":   "5s",
		"trace.exportTimeout":  "30s",
	}
}

// Load reads file (optional) and MODELGATE_* variables. Provider choice and
// credentials are not validated here; a bad backend surfaces as unready.
func Load(file string) (*AppConfig, *conf.Loader, error) {
	loader := conf.New(file, EnvPrefix, defaults())
	cfg := &AppConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	cfg.Health.SetDefaults()
	cfg.Http.SetDefaults()
	cfg.Trace.SetDefaults()
	return cfg, loader, nil
}

// WatchLogLevel applies log.level changes from the config file without a restart.
func WatchLogLevel(loader *conf.Loader) {
	loader.Watch(func() any { return &AppConfig{} }, func(c any) {
		next := c.(*AppConfig)
		if next.Log.Level != "" {
			log.SetLevel(next.Log.Level)
			log.Infow("log level updated", "level", next.Log.Level)
		}
	})
}

func ProvideDatabase(c *AppConfig) database.Conf { return c.Database }

func ProvideStorage(c *AppConfig) storage.Conf { return c.Storage }

func ProvideHealth(c *AppConfig) health.Conf { return c.Health }

func ProvideHttp(c *AppConfig) server.Http { return c.Http }
