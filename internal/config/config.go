// Package config loads the ambient configuration layer: page-table
// sizing overrides (for tests), the data directory, and the log level.
// None of these settings change on-disk layout — PageSize is a
// compile-time constant, never taken from config.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	PageSize     = 4096
	InvalidPage  = ^uint32(0)
	RowSize      = 293 // id(4) + username(33) + email(256), NUL-terminated
	UsernameSize = 33
	EmailSize    = 256
	MaxExprNodes = 30

	// TrailerSize is the byte budget internal/stats reserves at the tail
	// of page 0 for its persisted snapshot (row count, id bounds, and a
	// per-column cardinality sketch for id/username/email) plus a
	// bounded freelist. internal/node subtracts it from every leaf's
	// cell budget — uniformly, not just on page 0 — so a full leaf can
	// never grow into the trailer regardless of which page ends up root.
	TrailerSize = 476
)

// Config holds the knobs a reimplementation is allowed to vary.
type Config struct {
	TableMaxPages int    `mapstructure:"table_max_pages"`
	DataDir       string `mapstructure:"data_dir"`
	LogLevel      string `mapstructure:"log_level"`
}

// Default returns the spec's constants (TABLE_MAX_PAGES=100) with no
// overrides applied.
func Default() Config {
	return Config{
		TableMaxPages: 100,
		DataDir:       ".",
		LogLevel:      "info",
	}
}

// Load reads btreedb.yaml (if present in dir) and BTREEDB_* environment
// variables, layering them over Default(). A missing config file is not
// an error — env and defaults still apply.
func Load(dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("btreedb")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("BTREEDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("table_max_pages", cfg.TableMaxPages)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
