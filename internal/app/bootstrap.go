// Package app is the composition root of the resolver and intake processes.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"shopfloor.io/mes/internal/api/handlers"
	"shopfloor.io/mes/internal/app/modules"
	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/intake"
	"shopfloor.io/mes/internal/resolver"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	Modules []modules.Module

	// Resolver is set by Bootstrap, Intake by BootstrapIntake.
	Resolver *resolver.Resolver
	Intake   *intake.Server
}

// Bootstrap wires the resolver process: store, resolver, backlog sweep on
// River and the ops router.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	resolution, err := modules.NewResolutionModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init resolution module: %w", err)
	}
	allModules := []modules.Module{
		resolution,
		modules.NewBacklogModule(infra),
	}

	if err := infra.InitRiver(allModules); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	return &Application{
		Config:   cfg,
		Router:   newRouter(infra),
		Infra:    infra,
		Modules:  allModules,
		Resolver: resolution.Resolver,
	}, nil
}

// BootstrapIntake wires the intake process. It does not run River.
func BootstrapIntake(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	intakeModule, err := modules.NewIntakeModule(ctx, infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init intake module: %w", err)
	}

	return &Application{
		Config:  cfg,
		Router:  newRouter(infra),
		Infra:   infra,
		Modules: []modules.Module{intakeModule},
		Intake:  intakeModule.Server,
	}, nil
}

func newServerDeps(infra *modules.Infrastructure) handlers.ServerDeps {
	return handlers.ServerDeps{
		Pool:  infra.DB.Pool,
		Store: infra.Store,
	}
}
