package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is read once at process start. Credentials come from the
// environment (or a .env file loaded by main), never from source.
type Config struct {
	DatabaseURL        string
	SourceProjectID    string
	ServiceAccountFile string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PageSize           int
	RunID              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	pageSize, err := strconv.Atoi(getEnv("MIGRATE_PAGE_SIZE", "200"))
	if err != nil || pageSize < 1 {
		pageSize = 200
	}

	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SourceProjectID:    os.Getenv("SOURCE_PROJECT_ID"),
		ServiceAccountFile: os.Getenv("SOURCE_SERVICE_ACCOUNT_FILE"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		PageSize:           pageSize,
		RunID:              os.Getenv("MIGRATE_RUN_ID"),
	}
}

// RequireTarget fails fast when the target-store credentials are missing,
// before any I/O happens.
func (c Config) RequireTarget() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	return nil
}

// RequireSource fails fast when the source-store credentials are missing.
func (c Config) RequireSource() error {
	if c.SourceProjectID == "" {
		return fmt.Errorf("SOURCE_PROJECT_ID must be set")
	}
	if c.ServiceAccountFile == "" {
		return fmt.Errorf("SOURCE_SERVICE_ACCOUNT_FILE must be set")
	}
	return nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
