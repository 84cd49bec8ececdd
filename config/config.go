package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Chat behavior knobs
	RecallWindow     time.Duration
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	TypingTTL        time.Duration
	MaxContentLength int
	DefaultPageSize  int
	MaxPageSize      int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "forum_chat"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		RecallWindow:     time.Duration(getEnvAsInt("RECALL_WINDOW_SEC", 300)) * time.Second,
		HeartbeatTimeout: time.Duration(getEnvAsInt("HEARTBEAT_TIMEOUT_SEC", 60)) * time.Second,
		SweepInterval:    time.Duration(getEnvAsInt("PRESENCE_SWEEP_SEC", 30)) * time.Second,
		TypingTTL:        time.Duration(getEnvAsInt("TYPING_TTL_SEC", 3)) * time.Second,
		MaxContentLength: getEnvAsInt("MAX_CONTENT_LENGTH", 2000),
		DefaultPageSize:  getEnvAsInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:      getEnvAsInt("MAX_PAGE_SIZE", 100),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
