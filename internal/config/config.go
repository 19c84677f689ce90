package config

import (
	"fmt"
	"time"

	"github.com/ledgermate/governor/internal/core/resmon"
	"github.com/ledgermate/governor/internal/core/throttle"
)

// Config represents the complete application configuration.
// Values are resolved in three layers: embedded defaults, an optional
// config file, and GOVERNOR_* environment variables.
type Config struct {
	Server       ServerConfig             `mapstructure:"server"`
	Logging      LoggingConfig            `mapstructure:"logging"`
	Metrics      MetricsConfig            `mapstructure:"metrics"`
	Health       HealthConfig             `mapstructure:"health"`
	Throttle     throttle.Profiles        `mapstructure:"throttle"`
	Resources    resmon.Config            `mapstructure:"resources"`
	Breakers     map[string]BreakerConfig `mapstructure:"breakers"`
	Dependencies DependenciesConfig       `mapstructure:"dependencies"`
	Debug        DebugConfig              `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains dependency health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`

	// CacheTTL is how long probe results are served from cache
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// BreakerConfig contains per-dependency circuit breaker tuning
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// DependenciesConfig contains connection settings for external services
type DependenciesConfig struct {
	Chat    ChatConfig    `mapstructure:"chat"`
	AI      AIConfig      `mapstructure:"ai"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ChatConfig configures the chat platform connection
type ChatConfig struct {
	Token   string        `mapstructure:"token"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AIConfig configures the AI completion provider
type AIConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SpeechConfig configures the speech-to-text provider
type SpeechConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig configures the ledger storage backend
type StorageConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate rejects configurations the governor cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Throttle.Normal.PerSecond <= 0 || c.Throttle.Normal.PerMinute <= 0 {
		return fmt.Errorf("throttle.normal limits must be positive")
	}
	if c.Throttle.Degraded.PerSecond <= 0 || c.Throttle.Degraded.PerMinute <= 0 {
		return fmt.Errorf("throttle.degraded limits must be positive")
	}
	if c.Resources.MemoryThresholdMB <= 0 {
		return fmt.Errorf("resources.memory_threshold_mb must be positive")
	}
	if c.Resources.CPUThresholdPercent <= 0 || c.Resources.CPUThresholdPercent > 100 {
		return fmt.Errorf("resources.cpu_threshold_percent %v out of range", c.Resources.CPUThresholdPercent)
	}
	for name, b := range c.Breakers {
		if b.FailureThreshold <= 0 {
			return fmt.Errorf("breakers.%s.failure_threshold must be positive", name)
		}
		if b.RecoveryTimeout <= 0 {
			return fmt.Errorf("breakers.%s.recovery_timeout must be positive", name)
		}
	}
	return nil
}
