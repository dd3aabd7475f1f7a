package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"shopfloor.io/mes/internal/repository"
	"shopfloor.io/mes/internal/resolver"
)

// ResolutionModule builds the resolver over the shared store, optionally
// fronted by a transformation cache.
type ResolutionModule struct {
	Resolver *resolver.Resolver
}

// NewResolutionModule creates the resolution module.
func NewResolutionModule(infra *Infrastructure) (*ResolutionModule, error) {
	cfg := infra.Config

	var transformations resolver.TransformationStore = infra.Store
	if size := cfg.Resolver.TransformationCacheSize; size > 0 {
		cached, err := repository.NewCachedTransformations(infra.Store, size)
		if err != nil {
			return nil, fmt.Errorf("init transformation cache: %w", err)
		}
		transformations = cached
	}

	r, err := resolver.New(infra.Store, transformations, infra.Store, infra.Metrics, resolver.Config{
		PathStrategy: cfg.Resolver.PathStrategy,
		StrictMode:   cfg.Resolver.StrictMode,
		Lines:        cfg.ProductionLines(),
	})
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	return &ResolutionModule{Resolver: r}, nil
}

func (m *ResolutionModule) Name() string { return "resolution" }

func (m *ResolutionModule) RegisterWorkers(*river.Workers) {}

func (m *ResolutionModule) PeriodicJobs() []*river.PeriodicJob { return nil }

func (m *ResolutionModule) Shutdown(context.Context) error { return nil }
