// Package model defines the data structures for wildloop's configuration,
// persisted state, and the alert event log.
package model

type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	EventLog EventLogConfig `yaml:"event_log"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type MonitorConfig struct {
	TickIntervalSec        int `yaml:"tick_interval_sec"`         // barrier monitor tick (default 5)
	CheckTimeoutSec        int `yaml:"check_timeout_sec"`         // per-check command timeout (default 30)
	DefaultPollIntervalSec int `yaml:"default_poll_interval_sec"` // used when a barrier omits its own (default 30)
}

type EventLogConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes"` // rotation threshold (default 100MB)
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // e.g. "127.0.0.1:9464"; empty disables the endpoint
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ApplyDefaults fills zero-valued tunables in place.
func (c *Config) ApplyDefaults() {
	if c.Monitor.TickIntervalSec <= 0 {
		c.Monitor.TickIntervalSec = 5
	}
	if c.Monitor.CheckTimeoutSec <= 0 {
		c.Monitor.CheckTimeoutSec = 30
	}
	if c.Monitor.DefaultPollIntervalSec <= 0 {
		c.Monitor.DefaultPollIntervalSec = 30
	}
	if c.EventLog.MaxSizeBytes <= 0 {
		c.EventLog.MaxSizeBytes = 100 * 1024 * 1024
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		c.Daemon.ShutdownTimeoutSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
