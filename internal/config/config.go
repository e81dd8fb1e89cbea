// Package config loads service settings from the environment, after
// merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every SAMAJ_* setting.
type Config struct {
	HTTPAddr       string
	GRPCAddr       string
	PGDSN          string
	AuthSecret     string
	TokenTTL       time.Duration
	UploadDir      string
	UploadBaseURL  string
	MaxUploadBytes int64
	RedisAddr      string
	RedisPassword  string
	RoleCacheTTL   time.Duration
	RateBurst      int
	RatePerSec     float64
	MinPasswordLen int
	AllowedOrigins []string
	SecureCookies  bool
}

// Load reads .env (if present) and the process environment. Values that
// are set but malformed are reported together.
func Load(files ...string) (Config, error) {
	// A missing .env is normal; the environment alone is enough.
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv reads only the process environment.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		HTTPAddr:       getEnv("SAMAJ_HTTP_ADDR", ":8080"),
		GRPCAddr:       os.Getenv("SAMAJ_GRPC_ADDR"),
		PGDSN:          os.Getenv("SAMAJ_PG_DSN"),
		AuthSecret:     os.Getenv("SAMAJ_AUTH_SECRET"),
		TokenTTL:       durationEnv("SAMAJ_TOKEN_TTL", 24*time.Hour, &errs),
		UploadDir:      getEnv("SAMAJ_UPLOAD_DIR", "./uploads"),
		UploadBaseURL:  strings.TrimRight(getEnv("SAMAJ_UPLOAD_BASE_URL", "/uploads"), "/"),
		MaxUploadBytes: int64(intEnv("SAMAJ_MAX_UPLOAD_BYTES", 5<<20, &errs)),
		RedisAddr:      os.Getenv("SAMAJ_REDIS_ADDR"),
		RedisPassword:  os.Getenv("SAMAJ_REDIS_PASSWORD"),
		RoleCacheTTL:   durationEnv("SAMAJ_ROLE_CACHE_TTL", 5*time.Minute, &errs),
		RateBurst:      intEnv("SAMAJ_RATE_BURST", 20, &errs),
		RatePerSec:     floatEnv("SAMAJ_RATE_PER_SEC", 10, &errs),
		MinPasswordLen: intEnv("SAMAJ_MIN_PASSWORD_LEN", 6, &errs),
		AllowedOrigins: listEnv("SAMAJ_ALLOWED_ORIGINS"),
		SecureCookies:  boolEnv("SAMAJ_SECURE_COOKIES", false, &errs),
	}
	if _, ok := os.LookupEnv("SAMAJ_GRPC_ADDR"); !ok {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = "/uploads"
	}
	return cfg, errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: expected a positive integer, got %q", key, raw))
		return fallback
	}
	return v
}

func floatEnv(key string, fallback float64, errs *[]error) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: expected a positive number, got %q", key, raw))
		return fallback
	}
	return v
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: expected a positive duration, got %q", key, raw))
		return fallback
	}
	return v
}

func boolEnv(key string, fallback bool, errs *[]error) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: expected a boolean, got %q", key, raw))
		return fallback
	}
	return v
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
