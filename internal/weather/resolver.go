package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/weather-now/internal/common"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultLanguage     = "en"
)

var tracer = otel.Tracer("github.com/i474232898/weather-now/internal/weather")

// Resolver turns a city name into a Weather reading by geocoding the name
// and then asking the forecast API for current conditions at the match.
type Resolver struct {
	fetcher     JSONFetcher
	geocodeURL  string
	forecastURL string
	language    string
	now         func() time.Time
	location    *time.Location
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGeocodingURL overrides the geocoding search endpoint.
func WithGeocodingURL(u string) ResolverOption {
	return func(r *Resolver) { r.geocodeURL = u }
}

// WithForecastURL overrides the forecast endpoint.
func WithForecastURL(u string) ResolverOption {
	return func(r *Resolver) { r.forecastURL = u }
}

// WithLanguage sets the language geocoder results are localized to.
func WithLanguage(lang string) ResolverOption {
	return func(r *Resolver) { r.language = lang }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) { r.location = loc }
}

// NewResolver builds a Resolver against the Open-Meteo endpoints unless
// overridden by opts.
func NewResolver(fetcher JSONFetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		geocodeURL:  DefaultGeocodingURL,
		forecastURL: DefaultForecastURL,
		language:    DefaultLanguage,
		now:         time.Now,
		location:    time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the current calendar date in the resolver's location.
func (r *Resolver) Today() Date {
	return DateOf(r.now().In(r.location))
}

// Resolve geocodes city and fetches current conditions for the best match.
// The returned City is the geocoder's name for the place, which may differ
// from the input in case or diacritics. Surrounding whitespace is trimmed and
// inner runs collapse to one space, so "New   York" is geocoded as "New York".
func (r *Resolver) Resolve(ctx context.Context, city string) (Weather, error) {
	const op = "weather.resolve"

	if common.IsBlank(city) {
		return Weather{}, &Error{Op: op, Kind: KindInvalidInput, Err: ErrBlankCity}
	}
	city = common.Clean(city)

	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("weather.city", city)))
	defer span.End()

	place, err := r.Geocode(ctx, city)
	if err != nil {
		return Weather{}, fail(span, op, city, err)
	}

	cond, err := r.Current(ctx, place.Coordinates)
	if err != nil {
		return Weather{}, fail(span, op, city, err)
	}

	return Weather{
		Date:         r.Today(),
		City:         place.Name,
		Description:  describeWind(cond.WindSpeedKmh),
		TemperatureC: cond.TemperatureC,
	}, nil
}

// Geocode returns the single best match for city.
func (r *Resolver) Geocode(ctx context.Context, city string) (Place, error) {
	const op = "weather.geocode"

	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", r.language)

	u, err := withQuery(r.geocodeURL, q)
	if err != nil {
		return Place{}, &Error{Op: op, Kind: KindUpstream, Err: err}
	}

	doc, err := r.fetcher.FetchJSON(ctx, u)
	if err != nil {
		return Place{}, err
	}

	first, err := firstResult(doc)
	if err != nil {
		if errors.Is(err, ErrNoCandidates) {
			return Place{}, &Error{Op: op, Kind: KindNotFound, Err: err}
		}
		return Place{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}

	name, err := stringAt(first, "$.name")
	if err != nil {
		return Place{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	lat, err := numberAt(first, "$.latitude")
	if err != nil {
		return Place{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	lon, err := numberAt(first, "$.longitude")
	if err != nil {
		return Place{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}

	span.SetAttributes(
		attribute.String("weather.place", name),
		attribute.Float64("weather.latitude", lat),
		attribute.Float64("weather.longitude", lon),
	)

	return Place{Name: name, Coordinates: Coordinates{Latitude: lat, Longitude: lon}}, nil
}

// Current fetches the current-weather snapshot for c.
func (r *Resolver) Current(ctx context.Context, c Coordinates) (Conditions, error) {
	const op = "weather.forecast"

	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Float64("weather.latitude", c.Latitude),
		attribute.Float64("weather.longitude", c.Longitude),
	))
	defer span.End()

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', 6, 64))
	q.Set("current_weather", "true")

	u, err := withQuery(r.forecastURL, q)
	if err != nil {
		return Conditions{}, &Error{Op: op, Kind: KindUpstream, Err: err}
	}

	doc, err := r.fetcher.FetchJSON(ctx, u)
	if err != nil {
		return Conditions{}, err
	}

	temp, err := numberAt(doc, "$.current_weather.temperature")
	if err != nil {
		return Conditions{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	wind, err := numberAt(doc, "$.current_weather.windspeed")
	if err != nil {
		return Conditions{}, &Error{Op: op, Kind: KindMalformed, Err: err}
	}

	return Conditions{TemperatureC: temp, WindSpeedKmh: wind}, nil
}

func fail(span trace.Span, op, city string, err error) error {
	kind := KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	return &Error{Op: op, Kind: kind, City: city, Err: err}
}

// withQuery merges q into the query string already present on base.
func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

// firstResult returns results[0] from a geocoder response. Open-Meteo drops
// the results key entirely when nothing matches, so a missing key counts
// as no candidates.
func firstResult(doc any) (any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: response is %T, want object", ErrWrongType, doc)
	}
	raw, ok := root["results"]
	if !ok || raw == nil {
		return nil, ErrNoCandidates
	}
	results, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: results is %T, want array", ErrWrongType, raw)
	}
	if len(results) == 0 {
		return nil, ErrNoCandidates
	}
	return results[0], nil
}

func valueAt(doc any, path string) (any, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	return v, nil
}

func numberAt(doc any, path string) (float64, error) {
	v, err := valueAt(doc, path)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, want number", ErrWrongType, path, v)
	}
	return f, nil
}

func stringAt(doc any, path string) (string, error) {
	v, err := valueAt(doc, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrWrongType, path, v)
	}
	return s, nil
}
