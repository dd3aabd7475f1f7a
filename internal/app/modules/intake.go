package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"shopfloor.io/mes/internal/intake"
	"shopfloor.io/mes/internal/pkg/worker"
)

// IntakeModule owns the UDP order intake and its worker pool.
type IntakeModule struct {
	Server *intake.Server
	pool   *worker.Pool
}

// NewIntakeModule creates the intake module.
func NewIntakeModule(ctx context.Context, infra *Infrastructure) (*IntakeModule, error) {
	poolCfg := worker.DefaultConfig("intake")
	poolCfg.Size = infra.Config.Worker.IntakePoolSize
	// Received documents must outlive the listener: the pool's own context ends
	// only after Shutdown has drained it.
	pool, err := worker.NewPool(context.WithoutCancel(ctx), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("init intake pool: %w", err)
	}
	if err := infra.Metrics.RegisterPool(poolCfg.Name, pool.Metrics); err != nil {
		pool.Shutdown()
		return nil, err
	}
	return &IntakeModule{
		Server: intake.NewServer(infra.Config.Intake, infra.Store, pool, infra.Metrics),
		pool:   pool,
	}, nil
}

func (m *IntakeModule) Name() string { return "intake" }

func (m *IntakeModule) RegisterWorkers(*river.Workers) {}

func (m *IntakeModule) PeriodicJobs() []*river.PeriodicJob { return nil }

// Shutdown waits for in-flight documents.
func (m *IntakeModule) Shutdown(context.Context) error {
	m.pool.Shutdown()
	return nil
}
