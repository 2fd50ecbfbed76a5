// Package config содержит логику чтения конфигурации сервиса фудкарт.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/foodcart/foodcart-system/internal/geocoder"
)

// Config содержит параметры конфигурации сервиса фудкарт.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	GeocoderAPIKey string `env:"GEOCODER_API_KEY"`
	GeocoderURL    string `env:"GEOCODER_URL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGeocoderAPIKey := cfg.GeocoderAPIKey
	envGeocoderURL := cfg.GeocoderURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GeocoderAPIKey, "k", "", "geocoder API key")
	flag.StringVar(&cfg.GeocoderURL, "g", geocoder.DefaultBaseURL, "geocoder base URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGeocoderAPIKey != "" {
		cfg.GeocoderAPIKey = envGeocoderAPIKey
	}
	if envGeocoderURL != "" {
		cfg.GeocoderURL = envGeocoderURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = geocoder.DefaultBaseURL
	}

	return cfg, nil
}
