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
	Addr                  string
	DatabaseURL           string
	CORSAllowedOrigins    []string
	Env                   string
	APIMaxBodyBytes       int64
	ImportMaxFileBytes    int64
	ImportMaxRows         int
	ImportRateLimitPerMin int
	ImportTimeZone        *time.Location
	ReadHeaderTimeout     time.Duration
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	IdleTimeout           time.Duration
	RateLimitMaxIPs       int
	Backend               BackendConfig
}

// BackendConfig points at the REST backend that owns companies, ports and
// inventory.
type BackendConfig struct {
	BaseURL        string
	APIToken       string
	Timeout        time.Duration
	CatalogRetries int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	backend, err := LoadBackend()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:        getEnv("API_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CORSAllowedOrigins: getEnvCSV("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		Env:                   getEnv("APP_ENV", "dev"),
		APIMaxBodyBytes:       int64(getEnvInt("API_MAX_BODY_MB", 2)) * 1024 * 1024,
		ImportMaxFileBytes:    int64(getEnvInt("IMPORT_MAX_FILE_MB", 25)) * 1024 * 1024,
		ImportMaxRows:         getEnvInt("IMPORT_MAX_ROWS", 5000),
		ImportRateLimitPerMin: getEnvInt("IMPORT_RATE_LIMIT_PER_MIN", 20),
		ReadHeaderTimeout:     time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:           time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 15)) * time.Second,
		WriteTimeout:          time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 120)) * time.Second,
		IdleTimeout:           time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		RateLimitMaxIPs:       getEnvInt("RATE_LIMIT_MAX_IPS", 10000),
		Backend:               backend,
	}

	loc, err := getEnvLocation("IMPORT_TIME_ZONE", time.Local)
	if err != nil {
		return Config{}, err
	}
	cfg.ImportTimeZone = loc

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// LoadBackend reads only the backend settings. The CLI needs these without a
// database.
func LoadBackend() (BackendConfig, error) {
	_ = godotenv.Load()

	cfg := BackendConfig{
		BaseURL:        strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/"),
		APIToken:       os.Getenv("BACKEND_API_TOKEN"),
		Timeout:        time.Duration(getEnvInt("BACKEND_TIMEOUT_SEC", 30)) * time.Second,
		CatalogRetries: getEnvInt("BACKEND_CATALOG_RETRIES", 3),
	}
	if cfg.BaseURL == "" {
		return BackendConfig{}, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvLocation(key string, fallback *time.Location) (*time.Location, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return loc, nil
}
