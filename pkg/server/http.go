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

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/pprof"
)

// Http configures a fiber listener.
type Http struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AccessLog       bool          `mapstructure:"accessLog"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	PProf           pprof.Conf    `mapstructure:"pprof"`
}

func (h *Http) SetDefaults() {
	if h.Port == 0 {
		h.Port = 8081
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 10 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 10 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 60 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
}

func (h Http) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// excluded paths never reach the access log.
var excludedPaths = []string{"/healthz", "/readyz", "/metrics"}

// NewFiber builds a fiber app with panic recovery and, when enabled, an access
// log and the pprof endpoints.
func NewFiber(h Http, appName string) *fiber.App {
	h.SetDefaults()
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           h.ReadTimeout,
		WriteTimeout:          h.WriteTimeout,
		IdleTimeout:           h.IdleTimeout,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			log.Errorw("panic in http handler", "path", c.Path(), "panic", e)
		},
	}))
	if h.AccessLog {
		app.Use(logger.New(logger.Config{
			TimeFormat: time.RFC3339Nano,
			Format:     "ip:[${ip}] method:[${method}] path:[${path}] latency:[${latency}] status:[${status}] error:[${error}]\n",
			Output:     accessLogWriter{},
			Next: func(c *fiber.Ctx) bool {
				path := c.Path()
				for _, p := range excludedPaths {
					if path == p {
						return true
					}
				}
				return false
			},
		}))
	}
	pprof.Mount(app, h.PProf)
	return app
}

type accessLogWriter struct{}

func (accessLogWriter) Write(p []byte) (int, error) {
	log.Named("access").Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Serve listens on h.Addr() until ctx is done, then shuts down within ShutdownTimeout.
func Serve(ctx context.Context, app *fiber.App, h Http) error {
	h.SetDefaults()
	ln, err := net.Listen("tcp", h.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.Addr(), err)
	}
	return ServeListener(ctx, app, ln, h.ShutdownTimeout)
}

// ServeListener serves on ln until ctx is done.
func ServeListener(ctx context.Context, app *fiber.App, ln net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("HTTP listener started", "address", ln.Addr().String())
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("http listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("HTTP server shut down gracefully")
	return <-errCh
}
