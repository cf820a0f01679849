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

package pprof

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberpprof "github.com/gofiber/fiber/v2/middleware/pprof"

	"github.com/go-arcade/modelgate/pkg/log"
)

// Conf enables the profiling endpoints on the ops server.
type Conf struct {
	Enable bool   `mapstructure:"enable"`
	Prefix string `mapstructure:"prefix"`
}

// Mount serves /debug/pprof (under Prefix) on app when enabled.
func Mount(app *fiber.App, conf Conf) bool {
	if !conf.Enable {
		return false
	}
	prefix := strings.TrimRight(conf.Prefix, "/")
	app.Use(fiberpprof.New(fiberpprof.Config{Prefix: prefix}))
	log.Infow("pprof endpoints enabled", "path", prefix+"/debug/pprof/")
	return true
}
