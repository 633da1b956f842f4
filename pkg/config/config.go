// Package config provides a reusable loader for sharme configuration files
// and environment variables. Environment variables always win over file
// values, mirroring the precedence documented in SPEC_FULL.md §6.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sharme-dev/sharme/pkg/utils"
)

// Config is the unified runtime configuration for a sharme device.
type Config struct {
	Home string `mapstructure:"home" json:"home"`

	Archive struct {
		GQLEndpoints  []string `mapstructure:"gqls" json:"gqls"`
		DataEndpoints []string `mapstructure:"datas" json:"datas"`
		Testnet       bool     `mapstructure:"testnet" json:"testnet"`
	} `mapstructure:"archive" json:"archive"`

	Sync struct {
		PushIntervalSeconds  int `mapstructure:"push_interval_seconds" json:"push_interval_seconds"`
		WatchIntervalSeconds int `mapstructure:"watch_interval_seconds" json:"watch_interval_seconds"`
	} `mapstructure:"sync" json:"sync"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

var defaultGQLEndpoints = []string{
	"https://arweave.net/graphql",
	"https://arweave-search.goldsky.com/graphql",
}

var defaultDataEndpoints = []string{
	"https://arweave.net",
	"https://arweave.dev",
}

// Default returns a Config populated from the SHARME_HOME, SHARME_ARWEAVE_*
// and SHARME_TESTNET environment variables, with built-in fallbacks.
func Default() *Config {
	cfg := &Config{}
	cfg.Home = utils.EnvOrDefault("SHARME_HOME", defaultHome())
	cfg.Archive.GQLEndpoints = utils.EnvCSVOrDefault("SHARME_ARWEAVE_GQLS", defaultGQLEndpoints)
	cfg.Archive.DataEndpoints = utils.EnvCSVOrDefault("SHARME_ARWEAVE_DATAS", defaultDataEndpoints)
	cfg.Archive.Testnet = utils.EnvOrDefaultBool("SHARME_TESTNET", false)
	cfg.Sync.PushIntervalSeconds = utils.EnvOrDefaultInt("SHARME_PUSH_INTERVAL", 60)
	cfg.Sync.WatchIntervalSeconds = utils.EnvOrDefaultInt("SHARME_WATCH_INTERVAL", 30)
	cfg.Logging.Level = utils.EnvOrDefault("SHARME_LOG_LEVEL", "info")
	return cfg
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".sharme")
}

// Load merges an optional $SHARME_HOME/config.yaml on top of Default(),
// then re-applies environment overrides so env always wins.
func Load() (*Config, error) {
	cfg := Default()

	path := filepath.Join(cfg.Home, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.Wrap(err, "read config file")
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, utils.Wrap(err, "unmarshal config file")
		}
	}

	// Environment variables always take precedence over file values.
	if v, ok := os.LookupEnv("SHARME_HOME"); ok && v != "" {
		cfg.Home = v
	}
	if v := utils.EnvCSVOrDefault("SHARME_ARWEAVE_GQLS", nil); v != nil {
		cfg.Archive.GQLEndpoints = v
	}
	if v := utils.EnvCSVOrDefault("SHARME_ARWEAVE_DATAS", nil); v != nil {
		cfg.Archive.DataEndpoints = v
	}
	if _, ok := os.LookupEnv("SHARME_TESTNET"); ok {
		cfg.Archive.Testnet = utils.EnvOrDefaultBool("SHARME_TESTNET", cfg.Archive.Testnet)
	}
	if _, ok := os.LookupEnv("SHARME_PUSH_INTERVAL"); ok {
		cfg.Sync.PushIntervalSeconds = utils.EnvOrDefaultInt("SHARME_PUSH_INTERVAL", cfg.Sync.PushIntervalSeconds)
	}
	if _, ok := os.LookupEnv("SHARME_WATCH_INTERVAL"); ok {
		cfg.Sync.WatchIntervalSeconds = utils.EnvOrDefaultInt("SHARME_WATCH_INTERVAL", cfg.Sync.WatchIntervalSeconds)
	}
	if v, ok := os.LookupEnv("SHARME_LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	return cfg, nil
}
