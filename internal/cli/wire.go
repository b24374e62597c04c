package cli

import (
	"log/slog"

	"github.com/i474232898/weather-now/internal/config"
	"github.com/i474232898/weather-now/internal/metrics"
	"github.com/i474232898/weather-now/internal/store"
	"github.com/i474232898/weather-now/internal/weather"
	"github.com/i474232898/weather-now/internal/weather/upstream"
)

// stack is the lookup pipeline shared by serve and lookup.
type stack struct {
	metrics  *metrics.Metrics
	resolver *weather.Resolver
	cache    *store.DayCache
}

// newStack wires the upstream client, resolver and day cache from cfg.
// m may be nil when nothing scrapes the instruments.
func newStack(cfg *config.AppConfig, m *metrics.Metrics, log *slog.Logger) *stack {
	opts := []upstream.Option{upstream.WithTimeout(cfg.HTTPTimeout)}
	if m != nil {
		opts = append(opts, upstream.WithObserver(m))
	}
	client := upstream.New(upstream.NewHTTPClient(upstream.DefaultTransportConfig()), opts...)

	resolver := weather.NewResolver(client,
		weather.WithGeocodingURL(cfg.GeocodingURL),
		weather.WithForecastURL(cfg.ForecastURL),
		weather.WithLanguage(cfg.Language),
		weather.WithLocation(cfg.Location),
	)

	cache := store.NewDayCache(resolver, cfg.DefaultCity)
	if m != nil {
		cache.WithRecorder(m)
	}

	log.Debug("lookup pipeline ready",
		"geocoding_url", cfg.GeocodingURL,
		"forecast_url", cfg.ForecastURL,
		"timeout", cfg.HTTPTimeout.String(),
		"default_city", cfg.DefaultCity,
	)

	return &stack{metrics: m, resolver: resolver, cache: cache}
}
