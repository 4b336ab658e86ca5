// Package config loads streamql configuration from an optional YAML file,
// STREAMQL_ environment variables and built-in defaults, in that order of
// precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/streamql/internal/feature"
)

// EnvPrefix is the environment variable prefix. STREAMQL_LOG_LEVEL maps to
// log.level.
const EnvPrefix = "STREAMQL"

// Config is the resolved configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Settings map[string]any `mapstructure:"settings"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	// MaxConcurrency bounds the join fan-out per left record.
	MaxConcurrency    int    `mapstructure:"max_concurrency"`
	DistinctBy        string `mapstructure:"distinct_by"`
	DistinctCacheSize int    `mapstructure:"distinct_cache_size"`
}

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("engine.max_concurrency", 256)
	v.SetDefault("engine.distinct_by", feature.DefaultDistinctName)
	v.SetDefault("engine.distinct_cache_size", 1024)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("settings", map[string]any{})
}

// Load resolves configuration. An empty path skips the config file; a
// non-empty path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if c.Engine.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_concurrency: must be positive, got %d", c.Engine.MaxConcurrency))
	}
	if c.Engine.DistinctBy == "" {
		errs = append(errs, errors.New("engine.distinct_by: must not be empty"))
	}
	if c.Engine.DistinctCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.distinct_cache_size: must be positive, got %d", c.Engine.DistinctCacheSize))
	}
	return errors.Join(errs...)
}

// QuerySettings returns the settings every query starts from. Settings
// keys read from a file or the environment are lower-cased by viper.
func (c *Config) QuerySettings() map[string]any {
	out := make(map[string]any, len(c.Settings)+2)
	for k, v := range c.Settings {
		out[k] = v
	}
	out[feature.SettingDistinctBy] = c.Engine.DistinctBy
	out[feature.SettingDistinctCacheSize] = c.Engine.DistinctCacheSize
	return out
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
}
