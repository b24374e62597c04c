package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-now/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// Upstream endpoints and lookup settings.
	GeocodingURL string        `validate:"required,url"`
	ForecastURL  string        `validate:"required,url"`
	Language     string        `validate:"required"`
	HTTPTimeout  time.Duration `validate:"gt=0"`

	// DefaultCity is the fixed city served through the same-day cache.
	DefaultCity string `validate:"required"`
	Timezone    string
	Location    *time.Location `validate:"-"`

	// Cache warm-up.
	WarmCache bool
	WarmAt    string `validate:"required_if=WarmCache true"`

	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=json text"`

	OTLPEndpoint string
	ServiceName  string `validate:"required"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() AppConfig {
	return AppConfig{
		Port:         "8080",
		GeocodingURL: weather.DefaultGeocodingURL,
		ForecastURL:  weather.DefaultForecastURL,
		Language:     weather.DefaultLanguage,
		HTTPTimeout:  5 * time.Second,
		DefaultCity:  "London",
		Timezone:     "Local",
		WarmAt:       "00:00:05",
		LogLevel:     "info",
		LogFormat:    "json",
		ServiceName:  "weather-now",
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins). An empty
// path falls back to $WEATHER_CONFIG.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("config: no .env file loaded", "reason", err)
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("WEATHER_CONFIG")
	}
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c AppConfig) Addr() string { return ":" + c.Port }

func applyFile(cfg *AppConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var dto fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	return dto.apply(cfg)
}

func applyEnv(cfg *AppConfig) error {
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.GeocodingURL = getenvDefault("GEOCODING_URL", cfg.GeocodingURL)
	cfg.ForecastURL = getenvDefault("FORECAST_URL", cfg.ForecastURL)
	cfg.Language = getenvDefault("GEOCODING_LANGUAGE", cfg.Language)
	cfg.DefaultCity = getenvDefault("WEATHER_DEFAULT_CITY", cfg.DefaultCity)
	cfg.Timezone = getenvDefault("WEATHER_TIMEZONE", cfg.Timezone)
	cfg.WarmAt = getenvDefault("CACHE_WARM_AT", cfg.WarmAt)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenvDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.OTLPEndpoint = getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ServiceName = getenvDefault("OTEL_SERVICE_NAME", cfg.ServiceName)

	timeout, err := getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	if err != nil {
		return err
	}
	cfg.HTTPTimeout = timeout

	warm, err := getenvBool("CACHE_WARM", cfg.WarmCache)
	if err != nil {
		return err
	}
	cfg.WarmCache = warm

	return nil
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invalid WEATHER_TIMEZONE: %w", err)
	}
	return loc, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return b, nil
}
