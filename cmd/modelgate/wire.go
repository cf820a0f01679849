//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/go-arcade/modelgate/internal/bootstrap"
	"github.com/go-arcade/modelgate/internal/gateway/config"
	"github.com/go-arcade/modelgate/internal/gateway/health"
	"github.com/go-arcade/modelgate/internal/gateway/server"
	"github.com/go-arcade/modelgate/internal/gateway/service"
	"github.com/go-arcade/modelgate/internal/gateway/storage/provider"
	"github.com/go-arcade/modelgate/pkg/metrics"
	"github.com/go-arcade/modelgate/pkg/shutdown"
)

func initApp(ctx context.Context, cfg *config.AppConfig) (*bootstrap.App, func(), error) {
	panic(wire.Build(
		config.ProviderSet,
		metrics.ProviderSet,
		shutdown.NewManager,
		provider.ProviderSet,
		service.ProviderSet,
		health.ProviderSet,
		server.ProviderSet,
		bootstrap.NewApp,
	))
}
