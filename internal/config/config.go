package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration values.
type Config struct {
	Secret          string
	DatabaseDSN     string
	HTTPPort        string
	ExpiryAlertDays int
	CatalogPath     string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:pharmadesk.db?_pragma=foreign_keys(1)"
	}

	expiryDays := 30
	if raw := os.Getenv("EXPIRY_ALERT_DAYS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Printf("invalid EXPIRY_ALERT_DAYS value %q, defaulting to 30", raw)
		} else {
			expiryDays = parsed
		}
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	return Config{
		Secret:          secret,
		DatabaseDSN:     dsn,
		HTTPPort:        port,
		ExpiryAlertDays: expiryDays,
		CatalogPath:     os.Getenv("CATALOG_PATH"),
	}
}
