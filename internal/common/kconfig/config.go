// Package kconfig loads YAML configuration through viper with
// MLRUN_-prefixed environment overrides.
package kconfig

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// PostgresConfig locates the metadata store.
type PostgresConfig struct {
	ConnectionString string
}

// ClickHouseConfig locates the metrics store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// LoggingConfig selects the process log level and format.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// CardinalityConfig carries the guard's hard caps.
type CardinalityConfig struct {
	RunMetricNames     int64
	RunTagKeys         int64
	ProjectMetricNames int64
}

// ReorderConfig bounds the per-run reorder window.
type ReorderConfig struct {
	MaxSize int
	MaxWait time.Duration
}

// BatchConfig carries the per-request hard limits.
type BatchConfig struct {
	MaxPoints          int
	MaxBytes           int
	MaxParams          int
	MaxParamValueBytes int
	MaxTagValueBytes   int
}

// IngestConfig configures the ingest daemon.
type IngestConfig struct {
	BindHost    string
	GrpcPort    uint16
	HttpPort    uint16
	MetricsPort uint16

	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig

	ResumeTokenSecret string
	ResumeTokenTTL    time.Duration
	HeartbeatTimeout  time.Duration
	WatchdogInterval  time.Duration

	Reorder     ReorderConfig
	Cardinality CardinalityConfig
	Batch       BatchConfig

	AuthDisabled bool
	Compression  bool
	Logging      LoggingConfig
}

// QueryConfig configures the query daemon.
type QueryConfig struct {
	BindHost    string
	GrpcPort    uint16
	HttpPort    uint16
	MetricsPort uint16

	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig

	CacheTTL time.Duration

	AuthDisabled bool
	Compression  bool
	Logging      LoggingConfig
}

// DefaultIngestConfig returns the standard deploy defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		BindHost:          "0.0.0.0",
		GrpcPort:          50051,
		HttpPort:          8080,
		MetricsPort:       9090,
		ResumeTokenTTL:    7 * 24 * time.Hour,
		HeartbeatTimeout:  5 * time.Minute,
		WatchdogInterval:  30 * time.Second,
		Reorder:           ReorderConfig{MaxSize: 100, MaxWait: 30 * time.Second},
		Cardinality:       CardinalityConfig{RunMetricNames: 10000, RunTagKeys: 1000, ProjectMetricNames: 80000},
		Batch:             BatchConfig{MaxPoints: 10000, MaxBytes: 1 << 20, MaxParams: 1000, MaxParamValueBytes: 4 << 10, MaxTagValueBytes: 1 << 10},
		Logging:           LoggingConfig{Level: "info"},
	}
}

// DefaultQueryConfig returns the query daemon defaults.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		BindHost:    "0.0.0.0",
		GrpcPort:    50052,
		HttpPort:    8081,
		MetricsPort: 9091,
		CacheTTL:    5 * time.Second,
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads path (when non-empty) into out, which should be pre-filled
// with defaults. Environment variables override file values with the
// MLRUN_ prefix and underscores for nesting, e.g.
// MLRUN_POSTGRES_CONNECTIONSTRING.
func Load(path string, out interface{}) error {
	v := viper.New()
	v.SetEnvPrefix("MLRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", path)
		}
	}
	if err := v.Unmarshal(out); err != nil {
		return errors.Wrap(err, "unmarshalling config")
	}
	return nil
}
