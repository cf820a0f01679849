// Package server exposes the gateway's operational endpoints.
package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/wire"

	"github.com/go-arcade/modelgate/internal/gateway/health"
	"github.com/go-arcade/modelgate/pkg/metrics"
	pkgserver "github.com/go-arcade/modelgate/pkg/server"
	"github.com/go-arcade/modelgate/pkg/shutdown"
	"github.com/go-arcade/modelgate/pkg/trace"
	"github.com/go-arcade/modelgate/pkg/version"
)

var ProviderSet = wire.NewSet(NewRouter)

// Router serves /healthz, /readyz, /metrics and /version.
type Router struct {
	conf     pkgserver.Http
	monitor  *health.Monitor
	metrics  *metrics.Registry
	shutdown *shutdown.Manager
}

func NewRouter(conf pkgserver.Http, monitor *health.Monitor, reg *metrics.Registry, sm *shutdown.Manager) *Router {
	return &Router{conf: conf, monitor: monitor, metrics: reg, shutdown: sm}
}

type readiness struct {
	Ready          bool   `json:"ready"`
	ShuttingDown   bool   `json:"shuttingDown,omitempty"`
	ShutdownReason string `json:"shutdownReason,omitempty"`
	health.Status
}

// App builds the fiber app.
func (r *Router) App() *fiber.App {
	app := pkgserver.NewFiber(r.conf, "modelgate")
	app.Use(trace.FiberMiddleware())

	// liveness only says the process answers
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		st := r.monitor.Status()
		body := readiness{Ready: st.Ready(), Status: st}
		if r.shutdown != nil && r.shutdown.IsShuttingDown() {
			body.Ready = false
			body.ShuttingDown = true
			body.ShutdownReason = r.shutdown.Reason()
		}
		code := http.StatusOK
		if !body.Ready {
			code = http.StatusServiceUnavailable
		}
		return c.Status(code).JSON(body)
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(version.GetVersion())
	})

	if r.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.metrics.Handler()))
	}
	return app
}
