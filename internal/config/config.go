package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	AllowedOrigin        string
	DatabaseURL          string
	SchemaAutoMigrate    bool
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AuthSecret           string
	AuthIssuer           string
	LogLevel             string
	LogFormat            string
	PubSubProjectID      string
	PubSubTopic          string
	PubSubCredentials    string
	PrefixCacheTTL       time.Duration
	SeriesLockTTL        time.Duration
	NotifyBuffer         int
	ShutdownGraceSeconds int
}

// Load reads the process environment. A .env file in the working directory
// is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SchemaAutoMigrate:    getBool("SCHEMA_AUTO_MIGRATE", false),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		AuthSecret:           strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AuthIssuer:           strings.TrimSpace(os.Getenv("AUTH_ISSUER")),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "json")),
		PubSubProjectID:      strings.TrimSpace(os.Getenv("PUBSUB_PROJECT_ID")),
		PubSubTopic:          strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")),
		PubSubCredentials:    os.Getenv("PUBSUB_CREDENTIALS_JSON"),
		PrefixCacheTTL:       time.Duration(getPositiveInt("PREFIX_CACHE_TTL_SECONDS", 3600)) * time.Second,
		SeriesLockTTL:        time.Duration(getPositiveInt("SERIES_LOCK_TTL_SECONDS", 10)) * time.Second,
		NotifyBuffer:         getPositiveInt("NOTIFY_BUFFER", 256),
		ShutdownGraceSeconds: getPositiveInt("SHUTDOWN_GRACE_SECONDS", 10),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubTopic != ""
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}
