// internal/config/config.go
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	HTTPAddr           string `mapstructure:"HTTP_ADDR"`
	DBURL              string `mapstructure:"DB_URL"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	SnapshotWindowDays int    `mapstructure:"SNAPSHOT_WINDOW_DAYS"`
	MonthsBack         int    `mapstructure:"MONTHS_BACK"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("SNAPSHOT_WINDOW_DAYS", 365)
	viper.SetDefault("MONTHS_BACK", 12)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.SnapshotWindowDays <= 0 {
		return nil, errors.New("SNAPSHOT_WINDOW_DAYS must be a positive number of days")
	}
	if cfg.MonthsBack <= 0 {
		return nil, errors.New("MONTHS_BACK must be a positive number of months")
	}

	return &cfg, nil
}
