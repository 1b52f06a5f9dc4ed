// Package config loads the process-wide configuration once at startup.
//
// Values come from the environment, optionally seeded from a .env file in
// the working directory. The resulting Config is immutable and is passed
// explicitly to whatever needs it; nothing reads the environment later.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Defaults applied when a variable is unset.
const (
	DefaultPort       = 8080
	DefaultDBDriver   = "sqlite"
	DefaultDBDSN      = "data/messagely.db"
	DefaultBcryptCost = 12
)

type Config struct {
	Port           int
	DBDriver       string // "sqlite" or "postgres"
	DBDSN          string // file path for sqlite, connection URL for postgres
	JWTSecret      string
	BcryptCost     int
	HashWorkers    int // concurrent bcrypt operations; 0 means one per CPU
	LogLevel       slog.Level
	MetricsEnabled bool
}

// Load reads environment variables, optionally from a .env file if present,
// and validates them. Any invalid value is reported with the variable name.
func Load() (Config, error) {
	// Try to load .env if it exists; ignore error if file not found.
	// godotenv never overrides variables already set in the environment.
	_ = godotenv.Load()

	var errs []error

	port, err := getEnvInt("PORT", DefaultPort)
	if err != nil {
		errs = append(errs, err)
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", port))
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", DefaultDBDriver))
	switch driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", driver))
	}

	dsn := getEnv("DB_DSN", "")
	if dsn == "" {
		if driver == "postgres" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
		dsn = DefaultDBDSN
	}

	// JWT_SECRET must be a long random string. Use:
	//   JWT_SECRET=$(openssl rand -hex 32)
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}

	cost, err := getEnvInt("BCRYPT_COST", DefaultBcryptCost)
	if err != nil {
		errs = append(errs, err)
	} else if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	workers, err := getEnvInt("HASH_WORKERS", 0)
	if err != nil {
		errs = append(errs, err)
	} else if workers < 0 {
		errs = append(errs, fmt.Errorf("HASH_WORKERS %d must not be negative", workers))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	metrics, err := getEnvBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	return Config{
		Port:           port,
		DBDriver:       driver,
		DBDSN:          dsn,
		JWTSecret:      secret,
		BcryptCost:     cost,
		HashWorkers:    workers,
		LogLevel:       level,
		MetricsEnabled: metrics,
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", key, v)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s %q is not a boolean", key, v)
	}
	return b, nil
}
