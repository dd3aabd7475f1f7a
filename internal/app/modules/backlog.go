package modules

import (
	"context"

	"github.com/riverqueue/river"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/jobs"
)

// BacklogModule schedules the sweep that re-announces orders left without a
// BOM batch.
type BacklogModule struct {
	cfg    config.BacklogConfig
	worker *jobs.BacklogSweepWorker
}

// NewBacklogModule creates the backlog module.
func NewBacklogModule(infra *Infrastructure) *BacklogModule {
	cfg := infra.Config.Backlog
	return &BacklogModule{
		cfg:    cfg,
		worker: jobs.NewBacklogSweepWorker(infra.Store, infra.Metrics, cfg),
	}
}

func (m *BacklogModule) Name() string { return "backlog" }

// RegisterWorkers registers the sweep worker even when scheduling is off, so
// manually inserted sweep jobs still run.
func (m *BacklogModule) RegisterWorkers(workers *river.Workers) {
	river.AddWorker(workers, m.worker)
}

func (m *BacklogModule) PeriodicJobs() []*river.PeriodicJob {
	if !m.cfg.Enabled {
		return nil
	}
	return []*river.PeriodicJob{jobs.BacklogSweepPeriodicJob(m.cfg.Interval)}
}

func (m *BacklogModule) Shutdown(context.Context) error { return nil }
