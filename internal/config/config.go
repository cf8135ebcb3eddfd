// Package config loads the importer configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the importer.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Scryfall ScryfallConfig `mapstructure:"scryfall"`
	Import   ImportConfig   `mapstructure:"import"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type ScryfallConfig struct {
	CacheDir    string        `mapstructure:"cache_dir"`
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

type ImportConfig struct {
	SkipExisting bool `mapstructure:"skip_existing"`
}

// Load reads configuration from the given path, applying defaults and
// ARENASTATS_-prefixed environment overrides. A missing file is not an
// error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.url", "postgres://localhost:5432/arenastats")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("scryfall.cache_dir", "data/cache")
	v.SetDefault("scryfall.base_url", "https://api.scryfall.com")
	v.SetDefault("scryfall.http_timeout", 10*time.Minute)
	v.SetDefault("import.skip_existing", true)

	v.SetEnvPrefix("ARENASTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		// A missing config file falls back to defaults; anything else
		// (unreadable, invalid YAML) is fatal.
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}
