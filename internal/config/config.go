// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	HTTPPort          string
	DBPath            string
	SerialPort        string // "" = auto-connect to the first port that opens
	BaudRate          int
	SessionMaxAge     time.Duration
	SweepInterval     time.Duration
	ReconnectInterval time.Duration
	AllowedOrigins    []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "./data/arcade.db"),
		SerialPort:        getEnv("SERIAL_PORT", ""),
		BaudRate:          getEnvInt("BAUD_RATE", 115200),
		SessionMaxAge:     getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 30*time.Minute),
		ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", 5*time.Second),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("BAUD_RATE must be > 0")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("RECONNECT_INTERVAL must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
