// Package config loads client configuration from the environment with
// sensible defaults. Flags in main may override individual values.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// APIURL is the backend base URL including the /api prefix.
	APIURL string
	// Timeout bounds every HTTP call issued by the pipeline.
	Timeout time.Duration
	// ConfigDir overrides where credentials are persisted ("" = XDG default).
	ConfigDir string
}

func Load() Config {
	return Config{
		APIURL:    getenv("PROMPTDECK_API_URL", "http://localhost:8000/api"),
		Timeout:   time.Duration(getenvInt("PROMPTDECK_TIMEOUT_SECONDS", 30)) * time.Second,
		ConfigDir: getenv("PROMPTDECK_CONFIG_DIR", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
