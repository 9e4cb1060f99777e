package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"shekkle/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Telegram configuration
	TelegramToken string

	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Economy configuration
	StartingBalance    int64
	DailyReward        int64
	DailyClaimInterval time.Duration
	DefaultWagerAmount int64
	CurrencyName       string

	// Admin configuration, consumed by the chat adapter only
	AdminIDs []int64

	// Deadline sweep configuration
	SweepInterval time.Duration

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAdmin reports whether the given user id is in the admin list
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine, the environment may already be populated
	_ = godotenv.Load()

	config := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		StartingBalance:    100,
		DailyReward:        50,
		DailyClaimInterval: 24 * time.Hour,
		DefaultWagerAmount: 50,
		CurrencyName:       getEnvWithDefault("CURRENCY_NAME", "Shekel"),

		SweepInterval: time.Minute,

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	if config.StartingBalance, err = getInt64(os.Getenv("STARTING_BALANCE"), config.StartingBalance); err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	if config.DailyReward, err = getInt64(os.Getenv("DAILY_REWARD"), config.DailyReward); err != nil {
		return nil, fmt.Errorf("invalid DAILY_REWARD: %w", err)
	}
	if config.DefaultWagerAmount, err = getInt64(os.Getenv("DEFAULT_WAGER_AMOUNT"), config.DefaultWagerAmount); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_WAGER_AMOUNT: %w", err)
	}
	if config.DailyClaimInterval, err = getDuration(os.Getenv("DAILY_CLAIM_INTERVAL"), config.DailyClaimInterval); err != nil {
		return nil, fmt.Errorf("invalid DAILY_CLAIM_INTERVAL: %w", err)
	}
	if config.SweepInterval, err = getDuration(os.Getenv("SWEEP_INTERVAL"), config.SweepInterval); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}

	config.AdminIDs = parseIDList(os.Getenv("ADMIN_IDS"))

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.SweepInterval <= 0 {
			return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
		}
	}

	return config, nil
}

// parseIDList parses a comma-separated list of numeric ids, skipping anything that isn't a number
func parseIDList(raw string) []int64 {
	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func getInt64(raw string, defaultValue int64) (int64, error) {
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func getDuration(raw string, defaultValue time.Duration) (time.Duration, error) {
	if raw == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(raw)
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		AdminIDs:           []int64{999999},
		StartingBalance:    100,
		DailyReward:        50,
		DailyClaimInterval: 24 * time.Hour,
		DefaultWagerAmount: 50,
		CurrencyName:       "Shekel",
		SweepInterval:      time.Minute,
		LogLevel:           "debug",
	}
}
