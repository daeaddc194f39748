package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CompletionOverwrite = "overwrite"
	CompletionMonotonic = "monotonic"
)

type Config struct {
	Port        string
	DBPath      string
	SeedPath    string
	JWTSecret   string
	TokenTTL    time.Duration
	IdleTimeout time.Duration
	LogMode     string
	LogLevel    string
	TCPAddr     string
	UDPAddr     string
	GRPCAddr    string
	CORSOrigins []string

	// CompletionPolicy is "overwrite" (completed follows the latest write)
	// or "monotonic" (completed never goes back to false on its own).
	CompletionPolicy string

	AdminUsername string
	AdminPassword string
}

// Load reads .env when present, then the process environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		DBPath:           getEnvOrDefault("DB_PATH", "./data/redstring.db"),
		SeedPath:         getEnvOrDefault("SEED_PATH", "./data/content.json"),
		JWTSecret:        getEnvOrDefault("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:         getEnvDurationOrDefault("TOKEN_TTL", 24*time.Hour),
		IdleTimeout:      getEnvDurationOrDefault("SESSION_IDLE_TIMEOUT", 15*time.Minute),
		LogMode:          getEnvOrDefault("LOG_MODE", "dev"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		TCPAddr:          getEnvOrDefault("TCP_ADDR", ":9090"),
		UDPAddr:          getEnvOrDefault("UDP_ADDR", ":7070"),
		GRPCAddr:         getEnvOrDefault("GRPC_ADDR", ":50051"),
		CORSOrigins:      splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		CompletionPolicy: strings.ToLower(getEnvOrDefault("COMPLETION_POLICY", CompletionOverwrite)),
		AdminUsername:    getEnvOrDefault("ADMIN_USERNAME", "admin"),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
	}
	if cfg.CompletionPolicy != CompletionMonotonic {
		cfg.CompletionPolicy = CompletionOverwrite
	}
	return cfg
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// accepts Go durations ("90s") or bare seconds ("90")
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
