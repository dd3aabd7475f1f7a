// Package config provides configuration management for the MES services.
//
// Configuration is loaded from:
// 1. .env file in the working directory (optional, never overrides the environment)
// 2. config.yaml file (optional)
// 3. Environment variables (standard names like DATABASE_URL, LOG_LEVEL)
// 4. Default values
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"shopfloor.io/mes/internal/domain"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Backlog  BacklogConfig  `mapstructure:"backlog"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Lines    []LineConfig   `mapstructure:"lines"`
}

// ServerConfig contains the ops HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pool is shared by the repository, River and the notification publisher;
// the LISTEN connection is opened separately from the same DSN.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	IntakePoolSize int `mapstructure:"intake_pool_size"`
}

// ResolverConfig tunes the resolution loop.
type ResolverConfig struct {
	PathStrategy            string `mapstructure:"path_strategy"` // greedy or cheapest
	StrictMode              bool   `mapstructure:"strict_mode"`
	TransformationCacheSize int    `mapstructure:"transformation_cache_size"` // 0 disables the cache
}

// BacklogConfig controls the periodic re-announcement of orders that never
// got a BOM batch.
type BacklogConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Grace     time.Duration `mapstructure:"grace"`
	BatchSize int32         `mapstructure:"batch_size"`
	// MaxAttempts caps how often an order whose resolution failed with a
	// transient error is announced again, counting the first attempt.
	MaxAttempts int32 `mapstructure:"max_attempts"`
}

// IntakeConfig contains the UDP order intake settings.
type IntakeConfig struct {
	Addr       string `mapstructure:"addr"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// LineConfig describes one production line. Each entry of Machines lists the
// tools of one machine.
type LineConfig struct {
	ID             int64      `mapstructure:"id"`
	ToolChangeTime int        `mapstructure:"tool_change_time"`
	Machines       [][]string `mapstructure:"machines"`
}

// ProductionLines converts the configured lines into domain values.
func (c *Config) ProductionLines() []domain.ProductionLine {
	lines := make([]domain.ProductionLine, 0, len(c.Lines))
	for _, lc := range c.Lines {
		line := domain.ProductionLine{ID: lc.ID, ToolChangeTime: lc.ToolChangeTime}
		for _, tools := range lc.Machines {
			m := domain.Machine{Tools: make([]domain.Tool, 0, len(tools))}
			for _, t := range tools {
				m.Tools = append(m.Tools, domain.ParseTool(t))
			}
			line.Machines = append(line.Machines, m)
		}
		lines = append(lines, line)
	}
	return lines
}

// Load reads configuration from .env, file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mes-resolver")

	// No prefix: database.max_conns → DATABASE_MAX_CONNS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	switch c.Resolver.PathStrategy {
	case "greedy", "cheapest":
	default:
		return fmt.Errorf("resolver.path_strategy must be greedy or cheapest, got %q", c.Resolver.PathStrategy)
	}
	if c.Resolver.TransformationCacheSize < 0 {
		return fmt.Errorf("resolver.transformation_cache_size must not be negative")
	}
	if c.Worker.IntakePoolSize <= 0 {
		return fmt.Errorf("worker.intake_pool_size must be positive")
	}
	if c.Intake.BufferSize <= 0 {
		return fmt.Errorf("intake.buffer_size must be positive")
	}
	if c.Backlog.Enabled {
		if c.Backlog.Interval <= 0 {
			return fmt.Errorf("backlog.interval must be positive")
		}
		if c.Backlog.BatchSize <= 0 {
			return fmt.Errorf("backlog.batch_size must be positive")
		}
		if c.Backlog.MaxAttempts < 1 {
			return fmt.Errorf("backlog.max_attempts must be at least 1")
		}
	}
	for _, l := range c.Lines {
		for i, tools := range l.Machines {
			for _, t := range tools {
				if !domain.Tool(t).Valid() {
					return fmt.Errorf("lines[%d].machines[%d]: unknown tool %q", l.ID, i, t)
				}
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mes")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "mes")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 5)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Worker Pool
	v.SetDefault("worker.intake_pool_size", 16)

	// Resolver
	v.SetDefault("resolver.path_strategy", "greedy")
	v.SetDefault("resolver.strict_mode", false)
	v.SetDefault("resolver.transformation_cache_size", 1024)

	// Backlog sweep
	v.SetDefault("backlog.enabled", true)
	v.SetDefault("backlog.interval", "1m")
	v.SetDefault("backlog.grace", "2m")
	v.SetDefault("backlog.batch_size", 100)
	v.SetDefault("backlog.max_attempts", 3)

	// Intake
	v.SetDefault("intake.addr", "127.0.0.1:8080")
	v.SetDefault("intake.buffer_size", 10024)

	// Production lines
	defaultTools := []string{"T1", "T2", "T3"}
	v.SetDefault("lines", []map[string]interface{}{
		{
			"id":               1,
			"tool_change_time": 30,
			"machines":         [][]string{defaultTools, defaultTools},
		},
	})
}
