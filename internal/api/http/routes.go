package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/weather-now/internal/common"
	"github.com/i474232898/weather-now/internal/metrics"
	"github.com/i474232898/weather-now/internal/weather"
)

const (
	endpointWeather = "weather"
	endpointToday   = "today"

	metricsContentType = "text/plain; version=0.0.4; charset=utf-8"
)

var validate = validator.New()

// DayCache is the same-day cache behind /weather/today.
type DayCache interface {
	City() string
	GetOrResolve(ctx context.Context, today weather.Date) (weather.Weather, error)
	Peek() (weather.Weather, weather.Date, error)
}

// Deps are the collaborators the routes need. Cache and Metrics are
// optional; /weather/today is only registered when Cache is set.
//
// BaseContext, when set, is the parent of every request context. fasthttp
// never cancels a request context itself, so canceling BaseContext is the
// only way to abort lookups still running at shutdown.
type Deps struct {
	Lookup      weather.Lookup
	Cache       DayCache
	Today       func() weather.Date
	Metrics     *metrics.Metrics
	Log         *slog.Logger
	BaseContext context.Context
}

type handlers struct {
	lookup  weather.Lookup
	cache   DayCache
	today   func() weather.Date
	metrics *metrics.Metrics
	log     *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{
		lookup:  deps.Lookup,
		cache:   deps.Cache,
		today:   deps.Today,
		metrics: deps.Metrics,
		log:     deps.Log,
	}
	if h.log == nil {
		h.log = slog.Default()
	}

	app.Get("/", handleIndex)
	app.Get("/health", h.health)
	app.Get("/weather", h.weather)
	if h.cache != nil && h.today != nil {
		app.Get("/weather/today", h.weatherToday)
	}
	if h.metrics != nil {
		app.Get("/metrics", h.scrape)
	}
}

// cityQuery holds the query parameters of GET /weather.
type cityQuery struct {
	City string `validate:"required"`
}

// parseCityQuery copies the city out of the request buffer, which fasthttp
// reuses once the handler returns.
func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	q := cityQuery{City: common.Clean(utils.CopyString(c.Query("city")))}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (h *handlers) weather(c *fiber.Ctx) error {
	q, err := parseCityQuery(c)
	if err != nil {
		h.metrics.Lookup(endpointWeather, string(weather.KindInvalidInput))
		h.log.Warn("weather: missing city parameter", "path", c.Path())
		return fiber.NewError(fiber.StatusBadRequest, "city param missing")
	}

	w, err := h.lookup.Resolve(c.UserContext(), q.City)
	if err != nil {
		return h.lookupFailed(endpointWeather, q.City, err)
	}

	return h.writeWeather(c, endpointWeather, w)
}

func (h *handlers) weatherToday(c *fiber.Ctx) error {
	w, err := h.cache.GetOrResolve(c.UserContext(), h.today())
	if err != nil {
		return h.lookupFailed(endpointToday, h.cache.City(), err)
	}

	return h.writeWeather(c, endpointToday, w)
}

func (h *handlers) lookupFailed(endpoint, city string, err error) error {
	kind := weather.KindOf(err)
	h.metrics.Lookup(endpoint, string(kind))

	status := statusFor(kind)
	if status == fiber.StatusBadRequest {
		h.log.Warn("weather: rejected lookup", "endpoint", endpoint, "city", city, "err", err)
		return fiber.NewError(status, "city param missing")
	}

	h.log.Error("weather: fetch failed", "endpoint", endpoint, "city", city, "kind", string(kind), "err", err)
	return fiber.NewError(status, "weather service unavailable")
}

func (h *handlers) writeWeather(c *fiber.Ctx, endpoint string, w weather.Weather) error {
	body, err := json.Marshal(w)
	if err != nil {
		h.metrics.Lookup(endpoint, "internal")
		h.log.Error("weather: JSON serialization failed", "endpoint", endpoint, "city", w.City, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "json error")
	}

	h.metrics.Lookup(endpoint, "ok")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(body)
}

func (h *handlers) health(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "ok",
		"service": "weather-now",
	}
	if h.cache != nil {
		cache := fiber.Map{"city": h.cache.City()}
		if _, day, err := h.cache.Peek(); err == nil {
			cache["date"] = day.String()
		}
		resp["cache"] = cache
	}
	return c.JSON(resp)
}

func (h *handlers) scrape(c *fiber.Ctx) error {
	text, err := h.metrics.Scrape()
	if err != nil {
		h.log.Error("metrics: scrape failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "metrics write error")
	}
	c.Set(fiber.HeaderContentType, metricsContentType)
	return c.Status(fiber.StatusOK).SendString(text)
}

// statusFor maps a failure kind to the status returned to the client. Every
// failure after input validation, including an unknown city, is a 502.
func statusFor(kind weather.Kind) int {
	if kind == weather.KindInvalidInput {
		return fiber.StatusBadRequest
	}
	return fiber.StatusBadGateway
}
