package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
)

type Config struct {
	Env         string // "dev" or "prod"
	LogLevel    string // "debug", "info", ...
	RatesPath   string
	Timezone    string // location the effective date is read in
	HTTPTimeout time.Duration
	UserAgent   string
	DatabaseURL string // empty disables the Postgres mirror
	Sources     []model.Source
}

// Load reads the configuration from the environment and a .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		RatesPath:   GetEnv("RATES_PATH", "rates.json"),
		Timezone:    GetEnv("RATES_TIMEZONE", "UTC"),
		HTTPTimeout: GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		UserAgent:   GetEnv("HTTP_USER_AGENT", ""),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		Sources:     loadSources(),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// loadSources starts from the Service-Public pages and applies RATES_URL_<PRODUCT> overrides.
func loadSources() []model.Source {
	sources := model.DefaultSources()
	for i, src := range sources {
		sources[i].URL = GetEnv(SourceEnvKey(src.Product), src.URL)
	}
	return sources
}

// SourceEnvKey is the variable overriding a product's page, e.g. RATES_URL_PEL_NEW.
func SourceEnvKey(product model.ProductID) string {
	return "RATES_URL_" + strings.ToUpper(string(product))
}
