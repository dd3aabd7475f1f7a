package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func unreachableDB() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     65432, // Non-existent port
			User:     "test",
			Password: "test",
			Database: "test",
			SSLMode:  "disable",
			MaxConns: 5,
			MinConns: 1,
		},
		Resolver: config.ResolverConfig{PathStrategy: "greedy"},
		Worker:   config.WorkerConfig{IntakePoolSize: 2},
	}
}

func TestBootstrap_NoDB(t *testing.T) {
	app, err := Bootstrap(context.Background(), unreachableDB())
	require.Error(t, err, "Bootstrap should fail without database")
	assert.Nil(t, app, "Application should be nil on bootstrap failure")
}

func TestBootstrapIntake_NoDB(t *testing.T) {
	app, err := BootstrapIntake(context.Background(), unreachableDB())
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	app := &Application{}

	assert.NotPanics(t, func() {
		app.Shutdown()
	}, "Shutdown on empty Application should not panic")
}
