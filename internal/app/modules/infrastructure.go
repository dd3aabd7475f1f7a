package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/infrastructure"
	"shopfloor.io/mes/internal/metrics"
	"shopfloor.io/mes/internal/repository"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config  *config.Config
	DB      *infrastructure.DatabaseClients
	Store   *repository.Store
	Metrics *metrics.Registry
}

// NewInfrastructure initializes the database pool, the store and metrics.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return &Infrastructure{
		Config:  cfg,
		DB:      db,
		Store:   repository.NewStore(db.Pool),
		Metrics: metrics.NewRegistry(),
	}, nil
}

// InitRiver initializes the River client from the modules' workers and
// periodic jobs.
func (i *Infrastructure) InitRiver(mods []Module) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	workers := river.NewWorkers()
	var periodic []*river.PeriodicJob
	for _, mod := range mods {
		mod.RegisterWorkers(workers)
		periodic = append(periodic, mod.PeriodicJobs()...)
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

// Close releases infra resources.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
