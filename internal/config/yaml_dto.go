package config

import (
	"fmt"
	"time"
)

// fileConfig mirrors the optional YAML config file. Empty strings mean
// "not set"; cache.warm is a pointer so an absent key differs from false.
type fileConfig struct {
	Port string `yaml:"port"`

	Upstream struct {
		GeocodingURL string `yaml:"geocoding_url"`
		ForecastURL  string `yaml:"forecast_url"`
		Language     string `yaml:"language"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"upstream"`

	Weather struct {
		DefaultCity string `yaml:"default_city"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"weather"`

	Cache struct {
		Warm   *bool  `yaml:"warm"`
		WarmAt string `yaml:"warm_at"`
	} `yaml:"cache"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

func (f fileConfig) apply(cfg *AppConfig) error {
	setString(&cfg.Port, f.Port)
	setString(&cfg.GeocodingURL, f.Upstream.GeocodingURL)
	setString(&cfg.ForecastURL, f.Upstream.ForecastURL)
	setString(&cfg.Language, f.Upstream.Language)
	setString(&cfg.DefaultCity, f.Weather.DefaultCity)
	setString(&cfg.Timezone, f.Weather.Timezone)
	setString(&cfg.WarmAt, f.Cache.WarmAt)
	setString(&cfg.LogLevel, f.Log.Level)
	setString(&cfg.LogFormat, f.Log.Format)
	setString(&cfg.OTLPEndpoint, f.Telemetry.OTLPEndpoint)
	setString(&cfg.ServiceName, f.Telemetry.ServiceName)

	if f.Cache.Warm != nil {
		cfg.WarmCache = *f.Cache.Warm
	}

	if f.Upstream.Timeout != "" {
		d, err := time.ParseDuration(f.Upstream.Timeout)
		if err != nil {
			return fmt.Errorf("config: invalid upstream.timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
