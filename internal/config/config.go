package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. It is built once at process
// start and injected into component constructors; nothing reads ambient
// environment state after Load returns.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	SigningSecret        []byte
	TokenTTL             time.Duration
	HashTime             int
	HashMemoryKiB        int
	AdminUsername        string
	AdminPassword        string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SessionCacheEnabled  bool
	StoreTimeout         time.Duration
	SweepInterval        time.Duration
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

const minSigningSecretLen = 32

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	secret := strings.TrimSpace(os.Getenv("SIGNING_SECRET"))
	if secret == "" {
		return Config{}, fmt.Errorf("SIGNING_SECRET is required")
	}
	if len(secret) < minSigningSecretLen {
		return Config{}, fmt.Errorf("SIGNING_SECRET must be at least %d bytes", minSigningSecretLen)
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SigningSecret:        []byte(secret),
		TokenTTL:             getDuration("TOKEN_TTL", time.Hour),
		HashTime:             getInt("HASH_TIME_COST", 3),
		HashMemoryKiB:        getInt("HASH_MEMORY_KIB", 64*1024),
		AdminUsername:        strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		SessionCacheEnabled:  getBool("SESSION_CACHE_ENABLED", true),
		StoreTimeout:         getDuration("STORE_TIMEOUT", 5*time.Second),
		SweepInterval:        getDuration("SWEEP_INTERVAL", 10*time.Minute),
		ServiceName:          getEnv("SERVICE_NAME", "warden"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	// Negative costs would wrap when converted to argon2's uint32 parameters.
	if cfg.HashTime <= 0 {
		cfg.HashTime = 3
	}
	if cfg.HashMemoryKiB <= 0 {
		cfg.HashMemoryKiB = 64 * 1024
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
