// Package modules contains the dependency modules of the composition root.
package modules

import (
	"context"

	"github.com/riverqueue/river"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// PeriodicJobs returns the jobs River schedules for this module.
	PeriodicJobs() []*river.PeriodicJob

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}
