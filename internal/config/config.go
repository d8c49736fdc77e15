package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Normalize NormalizeConfig
	Duplicate DuplicateConfig
	Matcher   MatcherConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path           string
	MigrationsPath string
}

// NormalizeConfig holds row-normalization settings.
type NormalizeConfig struct {
	Strict         bool
	NegativeParens bool
}

// DuplicateConfig tunes the pre-commit duplicate gate. The thresholds are
// deliberately configurable rather than hard-coded: how close two rows must
// be to count as the same transaction is a policy choice, not a constant.
type DuplicateConfig struct {
	DateWindowDays   int
	MaxDistanceRatio float64
}

// MatcherConfig tunes transaction-to-ledger matching.
type MatcherConfig struct {
	DateWindowDays int
}

// Load reads configuration from file and env. Env var overrides use prefix BANKFEED_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "bankfeed", "bankfeed.db"))
	v.SetDefault("database.migrations_path", "internal/database/migrations")
	v.SetDefault("normalize.strict", true)
	v.SetDefault("normalize.negative_parens", true)
	v.SetDefault("duplicate.date_window_days", 0)
	v.SetDefault("duplicate.max_distance_ratio", 0.3)
	v.SetDefault("matcher.date_window_days", 2)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BANKFEED_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "bankfeed"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BANKFEED")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
