package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/markb/routinecat/internal/db"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/observability"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
// Priority: CLI flags > environment variables > config file > defaults
type Config struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"db"`
	VersionOverride string `yaml:"version_override"`
	Lenient         bool   `yaml:"lenient"`
	Workers         int    `yaml:"workers"`

	Log struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Mode     string `yaml:"mode"`
		FilePath string `yaml:"file"`
		DBPath   string `yaml:"db"`

		MaxSizeMB     int `yaml:"max_size_mb"`
		MaxBackups    int `yaml:"max_backups"`
		RetentionDays int `yaml:"retention_days"`
		BufferLines   int `yaml:"buffer_lines"`
	} `yaml:"log"`

	Telemetry struct {
		Exporter   string  `yaml:"exporter"`
		Endpoint   string  `yaml:"endpoint"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"telemetry"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Driver:  db.DriverSQLite,
		DSN:     "catalog.db",
		Workers: 8,
	}
	logCfg := log.DefaultConfig()
	cfg.Log.Level = logCfg.Level
	cfg.Log.Format = logCfg.Format
	cfg.Log.Mode = logCfg.Mode
	cfg.Log.FilePath = logCfg.FilePath
	cfg.Log.DBPath = logCfg.DBPath
	cfg.Log.MaxSizeMB = logCfg.MaxSizeMB
	cfg.Log.MaxBackups = logCfg.MaxBackups
	cfg.Log.RetentionDays = logCfg.RetentionDays
	cfg.Log.BufferLines = logCfg.BufferLines

	otelCfg := observability.NewConfig()
	cfg.Telemetry.Exporter = otelCfg.Exporter
	cfg.Telemetry.Endpoint = otelCfg.Endpoint
	cfg.Telemetry.SampleRate = otelCfg.SampleRate
	return cfg
}

// loadConfigFile merges a YAML file over cfg.
func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// buildConfig resolves the configuration for cmd.
func buildConfig(cmd *cobra.Command) (*Config, error) {
	cfg := DefaultConfig()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("ROUTINECAT_CONFIG")
	}
	if path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Read environment variables
	envString(&cfg.DSN, "ROUTINECAT_DB")
	envString(&cfg.Driver, "ROUTINECAT_DRIVER")
	envString(&cfg.VersionOverride, "ROUTINECAT_VERSION_OVERRIDE")
	envString(&cfg.Log.Level, "ROUTINECAT_LOG_LEVEL")
	envString(&cfg.Log.Format, "ROUTINECAT_LOG_FORMAT")
	envString(&cfg.Log.Mode, "ROUTINECAT_LOG_MODE")
	envString(&cfg.Log.FilePath, "ROUTINECAT_LOG_FILE")
	envString(&cfg.Log.DBPath, "ROUTINECAT_LOG_DB")
	envString(&cfg.Telemetry.Exporter, "ROUTINECAT_OTEL_EXPORTER")
	envString(&cfg.Telemetry.Endpoint, "ROUTINECAT_OTEL_ENDPOINT")
	if v := os.Getenv("ROUTINECAT_LENIENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ROUTINECAT_LENIENT: %w", err)
		}
		cfg.Lenient = b
	}
	if v := os.Getenv("ROUTINECAT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ROUTINECAT_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("ROUTINECAT_LOG_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ROUTINECAT_LOG_RETENTION_DAYS: %w", err)
		}
		cfg.Log.RetentionDays = n
	}
	if v := os.Getenv("ROUTINECAT_OTEL_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("ROUTINECAT_OTEL_SAMPLE_RATE: %w", err)
		}
		cfg.Telemetry.SampleRate = f
	}

	// CLI flags override environment variables
	flags := cmd.Flags()
	flagString(cmd, &cfg.DSN, "db")
	flagString(cmd, &cfg.Driver, "driver")
	flagString(cmd, &cfg.VersionOverride, "version-override")
	flagString(cmd, &cfg.Log.Level, "log-level")
	flagString(cmd, &cfg.Log.Format, "log-format")
	flagString(cmd, &cfg.Log.Mode, "log-mode")
	flagString(cmd, &cfg.Telemetry.Exporter, "otel-exporter")
	flagString(cmd, &cfg.Telemetry.Endpoint, "otel-endpoint")
	if flags.Changed("lenient") {
		cfg.Lenient, _ = flags.GetBool("lenient")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	return cfg, nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func flagString(cmd *cobra.Command, dst *string, name string) {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		*dst = v
	}
}

// LogConfig converts the log section for log.Init.
func (c *Config) LogConfig() *log.Config {
	lc := log.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.Mode = c.Log.Mode
	lc.FilePath = c.Log.FilePath
	lc.DBPath = c.Log.DBPath
	lc.MaxSizeMB = c.Log.MaxSizeMB
	lc.MaxBackups = c.Log.MaxBackups
	lc.RetentionDays = c.Log.RetentionDays
	lc.BufferLines = c.Log.BufferLines
	return lc
}

// TelemetryConfig converts the telemetry section for observability.Init.
// Traces and metrics are both on whenever an exporter is chosen.
func (c *Config) TelemetryConfig() *observability.Config {
	oc := observability.NewConfig()
	oc.Exporter = c.Telemetry.Exporter
	oc.Endpoint = c.Telemetry.Endpoint
	oc.SampleRate = c.Telemetry.SampleRate
	oc.TracesEnabled = oc.ShouldEnable()
	oc.MetricsEnabled = oc.ShouldEnable()
	return oc
}
