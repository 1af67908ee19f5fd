package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string
	DBPath  string
	DBDebug bool

	// Room cache; an empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RoomCacheTTL  time.Duration

	// Handshake tokens; an empty JWTSecret disables the check.
	JWTSecret string
	JWTIssuer string

	CORSAllowedOrigins string

	WSWriteTimeout  time.Duration
	WSPongWait      time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "3000"),
		DBPath:             getEnv("DB_PATH", "chat.db"),
		DBDebug:            getEnv("DB_DEBUG", "false") == "true",
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RoomCacheTTL:       getDuration("ROOM_CACHE_TTL", 30*time.Second),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          os.Getenv("JWT_ISSUER"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"),
		WSWriteTimeout:     getDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		WSPongWait:         getDuration("WS_PONG_WAIT", 60*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// CacheEnabled reports whether a redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// AuthEnabled reports whether handshake tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration falls back to defaultValue when the variable is unset,
// unparsable or not positive.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
