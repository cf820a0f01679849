package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"github.com/go-arcade/modelgate/internal/gateway/config"
	"github.com/go-arcade/modelgate/internal/gateway/health"
	"github.com/go-arcade/modelgate/internal/gateway/repo"
	"github.com/go-arcade/modelgate/internal/gateway/server"
	"github.com/go-arcade/modelgate/internal/gateway/service"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/metrics"
	pkgserver "github.com/go-arcade/modelgate/pkg/server"
	"github.com/go-arcade/modelgate/pkg/safe"
	"github.com/go-arcade/modelgate/pkg/shutdown"
	"github.com/go-arcade/modelgate/pkg/trace"
	"github.com/go-arcade/modelgate/pkg/version"
)

type App struct {
	Conf     *config.AppConfig
	Backend  repo.Backend
	Services *service.Services
	Monitor  *health.Monitor
	Router   *server.Router
	Metrics  *metrics.Registry
	Shutdown *shutdown.Manager
}

// InitAppFunc is the wire-generated constructor.
type InitAppFunc func(ctx context.Context, cfg *config.AppConfig) (*App, func(), error)

func NewApp(
	cfg *config.AppConfig,
	backend repo.Backend,
	services *service.Services,
	monitor *health.Monitor,
	router *server.Router,
	reg *metrics.Registry,
	sm *shutdown.Manager,
) *App {
	return &App{
		Conf:     cfg,
		Backend:  backend,
		Services: services,
		Monitor:  monitor,
		Router:   router,
		Metrics:  reg,
		Shutdown: sm,
	}
}

// Bootstrap loads config, installs logging and tracing, then builds the app.
// The returned cleanup releases everything in reverse order.
func Bootstrap(ctx context.Context, configFile string, initApp InitAppFunc) (*App, func() error, error) {
	cfg, loader, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return nil, nil, err
	}
	config.WatchLogLevel(loader)

	if cfg.Trace.ServiceVersion == "" {
		cfg.Trace.ServiceVersion = version.Version
	}
	stopTrace, err := trace.Init(ctx, cfg.Trace)
	if err != nil {
		return nil, nil, err
	}

	app, cleanupApp, err := initApp(ctx, cfg)
	if err != nil {
		_ = stopTrace(context.Background())
		return nil, nil, err
	}

	cleanup := func() error {
		var result *multierror.Error
		// Closing is idempotent, so the injector's cleanup closing again is a no-op.
		if app.Backend != nil {
			if err := app.Backend.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close %s backend: %w", app.Backend.Provider(), err))
			}
		}
		if cleanupApp != nil {
			cleanupApp()
		}
		if err := stopTrace(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
		// stdout cannot be synced on some platforms
		if err := log.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}
	return app, cleanup, nil
}

// Migrate applies pending migrations of the configured backend.
func Migrate(ctx context.Context, app *App) ([]string, error) {
	applied, err := app.Backend.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	log.Infow("migrations applied", "provider", app.Backend.Provider(), "count", len(applied), "ids", applied)
	return applied, nil
}

// Run migrates, starts the health monitor and the ops server, and blocks until
// SIGINT/SIGTERM or ctx is done. A failed migration aborts startup; an
// unavailable backend does not, it is served as unready.
func Run(ctx context.Context, app *App) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	if _, err := Migrate(ctx, app); err != nil {
		if !errors.Is(err, repo.ErrBackendUnavailable) {
			return fmt.Errorf("startup migrations: %w", err)
		}
		log.Errorw("backend unavailable, serving as unready", "provider", app.Backend.Provider(), "error", err)
	}

	safe.Go(func() { app.Monitor.Run(ctx) })

	go func() {
		<-ctx.Done()
		if app.Shutdown.Shutdown("signal") {
			log.Info("received shutdown signal, shutting down gracefully")
		}
	}()

	return pkgserver.Serve(ctx, app.Router.App(), app.Conf.Http)
}
