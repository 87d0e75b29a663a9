package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/emoteam/emopipe/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port        string
	DBPath      string
	ArtifactDir string
	ParamsPath  string
	LogLevel    string
	LogFormat   string
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", constants.DefaultPort),
		DBPath:      getEnv("DB_PATH", constants.DefaultDBPath),
		ArtifactDir: getEnv("ARTIFACT_DIR", constants.DefaultArtifactDir),
		ParamsPath:  getEnv("PARAMS_PATH", constants.DefaultParamsPath),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	}
	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}
	if c.ArtifactDir == "" {
		errors = append(errors, "ARTIFACT_DIR cannot be empty")
	}
	if c.ParamsPath == "" {
		errors = append(errors, "PARAMS_PATH cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
