// Package config loads service configuration from the environment.
package config

import (
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	DatabaseURL  string `mapstructure:"database_url"`
	DatabaseName string `mapstructure:"database_name"`
	RedisURL     string `mapstructure:"redis_url"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Workers      int    `mapstructure:"workers"`
	Env          string `mapstructure:"env"` // "dev" relaxes CORS
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Dev reports whether the service runs with the dev environment label.
func (c *Config) Dev() bool {
	return c.Env == "dev" || c.Env == "development" || c.Env == ""
}

// Load reads configuration from environment variables with sane defaults.
// An empty DATABASE_URL selects the in-memory store.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("database_url", "")
	v.SetDefault("database_name", "cryptomatch")
	v.SetDefault("redis_url", "")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("workers", 4)
	v.SetDefault("env", "dev")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
