package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
// Call godotenv.Load in main before Load so a local .env file works in dev.
type Config struct {
	// HTTP
	ListenAddr  string
	Environment string

	// Postgres (user accounts)
	DatabaseURL string

	// MongoDB (notification store)
	MongoURL      string
	MongoDatabase string

	// Redis (unread-count cache, rate limiting)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Auth
	JWTSecret []byte
	TokenTTL  time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment. JWT_SECRET is the only
// hard requirement; everything else has a development default.
func Load() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "treehole")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	tokenTTL := 7 * 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", raw, err)
		}
		tokenTTL = parsed
	}

	return &Config{
		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", ":8080"),
		Environment:   getEnvOrDefault("ENVIRONMENT", "development"),
		DatabaseURL:   databaseURL,
		MongoURL:      getEnvOrDefault("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "treehole"),
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     []byte(jwtSecret),
		TokenTTL:      tokenTTL,
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:       getEnvOrDefault("LOG_FILE", "server.log"),
	}, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
