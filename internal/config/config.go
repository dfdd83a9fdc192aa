// Package config loads pinq settings from an optional config file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mengzui/Pinq/internal/kvstore"
	"github.com/mengzui/Pinq/internal/store"
)

// EnvPrefix is the prefix for environment overrides. PINQ_STORE_PATH sets
// store.path.
const EnvPrefix = "PINQ_"

// Config is the full pinq configuration.
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Store StoreConfig `mapstructure:"store"`
	KV    KVConfig    `mapstructure:"kv"`
}

type LogConfig struct {
	Format string `mapstructure:"format"` // "text" | "json"
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
}

// StoreConfig configures the SQLite table store.
type StoreConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KVConfig configures the bolt bucket store.
type KVConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:   LogConfig{Format: "text", Level: "info"},
		Store: StoreConfig{Timeout: store.DefaultBusyTimeout},
		KV:    KVConfig{Timeout: kvstore.DefaultOpenTimeout},
	}
}

// Load reads the config file at path (skipped when empty), then applies
// environment variables starting with prefix. Keys map by lowercasing and
// replacing underscores with dots: PINQ_LOG_FORMAT sets log.format.
func Load(prefix, path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.timeout", def.Store.Timeout)
	v.SetDefault("kv.path", def.KV.Path)
	v.SetDefault("kv.timeout", def.KV.Timeout)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, env := range os.Environ() {
		key, val, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		prop := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, prefixUpper), "_", "."))
		prop = strings.TrimPrefix(prop, ".")
		if prop == "" {
			continue
		}
		v.Set(prop, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Store.Timeout < 0 || c.KV.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
