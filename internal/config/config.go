package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string
	AIAPIKey      string
	AIBaseURL     string
	AIModel       string
	LogLevel      string
	DevMode       bool

	// MergeDefaultCategories unions stored category lists with the built-in set on load.
	MergeDefaultCategories bool
	SchedulerInterval      time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	devMode, err := getEnvBool("DEV_MODE", false)
	if err != nil {
		return nil, err
	}
	mergeDefaults, err := getEnvBool("MERGE_DEFAULT_CATEGORIES", true)
	if err != nil {
		return nil, err
	}
	interval, err := time.ParseDuration(getEnvOrDefault("SCHEDULER_INTERVAL", "1m"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %q", os.Getenv("SCHEDULER_INTERVAL"))
	}

	return &Config{
		DatabaseURI:            os.Getenv("DATABASE_URI"),
		TelegramToken:          os.Getenv("TELEGRAM_TOKEN"),
		AIAPIKey:               os.Getenv("AI_API_KEY"),
		AIBaseURL:              getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:                getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		DevMode:                devMode,
		MergeDefaultCategories: mergeDefaults,
		SchedulerInterval:      interval,
	}, nil
}

// Validate reports the first missing required key.
func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return fmt.Errorf("DATABASE_URI is required")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
