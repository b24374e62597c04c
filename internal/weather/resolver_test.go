package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	testGeocodeURL  = "http://geo.test/v1/search"
	testForecastURL = "http://forecast.test/v1/forecast"
)

// fakeFetcher answers by URL prefix and records every requested URL.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []string
	geocode  func() (any, error)
	forecast func() (any, error)
}

func (f *fakeFetcher) FetchJSON(_ context.Context, rawURL string) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(rawURL, testGeocodeURL):
		return f.geocode()
	case strings.HasPrefix(rawURL, testForecastURL):
		return f.forecast()
	}
	return nil, errors.New("unexpected url " + rawURL)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func decode(t *testing.T, s string) func() (any, error) {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return func() (any, error) { return doc, nil }
}

func parisFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		geocode:  decode(t, `{"results":[{"name":"Paris","latitude":48.8,"longitude":2.3}]}`),
		forecast: decode(t, `{"current_weather":{"temperature":20.1,"windspeed":3.0}}`),
	}
}

func newTestResolver(f JSONFetcher) *Resolver {
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return NewResolver(f,
		WithGeocodingURL(testGeocodeURL),
		WithForecastURL(testForecastURL),
		WithClock(clock),
		WithLocation(time.UTC),
	)
}

func TestResolve_Success(t *testing.T) {
	f := parisFetcher(t)
	r := newTestResolver(f)

	w, err := r.Resolve(context.Background(), "paris")
	require.NoError(t, err)

	assert.Equal(t, Weather{
		Date:         Date{Year: 2024, Month: time.May, Day: 1},
		City:         "Paris",
		Description:  "Wind 3.0 km/h",
		TemperatureC: 20.1,
	}, w)
	assert.Len(t, f.Calls(), 2)
}

func TestResolve_RequestURLs(t *testing.T) {
	f := parisFetcher(t)
	r := newTestResolver(f)

	_, err := r.Resolve(context.Background(), "  São   Paulo ")
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 2)

	geo, err := url.Parse(calls[0])
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", geo.Query().Get("name"))
	assert.Equal(t, "1", geo.Query().Get("count"))
	assert.Equal(t, "en", geo.Query().Get("language"))
	assert.Contains(t, calls[0], "name=S%C3%A3o+Paulo")

	fc, err := url.Parse(calls[1])
	require.NoError(t, err)
	assert.Equal(t, "48.800000", fc.Query().Get("latitude"))
	assert.Equal(t, "2.300000", fc.Query().Get("longitude"))
	assert.Equal(t, "true", fc.Query().Get("current_weather"))
}

func TestResolve_KeepsExistingQuery(t *testing.T) {
	f := parisFetcher(t)
	r := NewResolver(f,
		WithGeocodingURL(testGeocodeURL+"?apikey=k"),
		WithForecastURL(testForecastURL),
		WithLanguage("fr"),
	)

	_, err := r.Resolve(context.Background(), "Paris")
	require.NoError(t, err)

	geo, err := url.Parse(f.Calls()[0])
	require.NoError(t, err)
	assert.Equal(t, "k", geo.Query().Get("apikey"))
	assert.Equal(t, "fr", geo.Query().Get("language"))
}

func TestResolve_BlankCity(t *testing.T) {
	for _, city := range []string{"", " ", "\t\n"} {
		f := parisFetcher(t)
		r := newTestResolver(f)

		_, err := r.Resolve(context.Background(), city)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindInvalidInput), "city %q: %v", city, err)
		assert.ErrorIs(t, err, ErrBlankCity)
		assert.Empty(t, f.Calls(), "blank city must not reach the network")
	}
}

func TestResolve_NoCandidates(t *testing.T) {
	for name, body := range map[string]string{
		"empty results":   `{"results":[]}`,
		"missing results": `{"generationtime_ms":0.5}`,
		"null results":    `{"results":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := parisFetcher(t)
			f.geocode = decode(t, body)
			r := newTestResolver(f)

			_, err := r.Resolve(context.Background(), "Atlantis")
			require.Error(t, err)
			assert.Equal(t, KindNotFound, KindOf(err))
			assert.ErrorIs(t, err, ErrNoCandidates)
			assert.Len(t, f.Calls(), 1, "forecast must not be called")
		})
	}
}

func TestResolve_GeocodeFailureStopsPipeline(t *testing.T) {
	f := parisFetcher(t)
	f.geocode = func() (any, error) {
		return nil, &Error{Op: "upstream.fetch", Kind: KindUpstream, Err: errors.New("connection refused")}
	}
	r := newTestResolver(f)

	_, err := r.Resolve(context.Background(), "Paris")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Len(t, f.Calls(), 1)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "weather.resolve", e.Op)
	assert.Equal(t, "Paris", e.City)
}

func TestResolve_CanceledIsPreserved(t *testing.T) {
	f := parisFetcher(t)
	f.forecast = func() (any, error) {
		return nil, &Error{Op: "upstream.fetch", Kind: KindCanceled, Err: context.Canceled}
	}
	r := newTestResolver(f)

	_, err := r.Resolve(context.Background(), "Paris")
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_Malformed(t *testing.T) {
	cases := []struct {
		name     string
		geocode  string
		forecast string
	}{
		{"geocode not an object", `[1,2]`, `{}`},
		{"results not an array", `{"results":{}}`, `{}`},
		{"missing latitude", `{"results":[{"name":"Paris","longitude":2.3}]}`, `{}`},
		{"latitude is a string", `{"results":[{"name":"Paris","latitude":"48.8","longitude":2.3}]}`, `{}`},
		{"name is a number", `{"results":[{"name":1,"latitude":48.8,"longitude":2.3}]}`, `{}`},
		{"missing current_weather", `{"results":[{"name":"Paris","latitude":48.8,"longitude":2.3}]}`, `{"hourly":{}}`},
		{"missing windspeed", `{"results":[{"name":"Paris","latitude":48.8,"longitude":2.3}]}`, `{"current_weather":{"temperature":20.1}}`},
		{"temperature is null", `{"results":[{"name":"Paris","latitude":48.8,"longitude":2.3}]}`, `{"current_weather":{"temperature":null,"windspeed":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{geocode: decode(t, tc.geocode), forecast: decode(t, tc.forecast)}
			r := newTestResolver(f)

			_, err := r.Resolve(context.Background(), "Paris")
			require.Error(t, err)
			assert.Equal(t, KindMalformed, KindOf(err), "%v", err)
		})
	}
}

func TestResolve_UsesGeocoderName(t *testing.T) {
	f := parisFetcher(t)
	f.geocode = decode(t, `{"results":[{"name":"København","latitude":55.67,"longitude":12.56}]}`)
	r := newTestResolver(f)

	w, err := r.Resolve(context.Background(), "copenhagen")
	require.NoError(t, err)
	assert.Equal(t, "København", w.City)
}

func TestToday_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	clock := func() time.Time { return time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC) }

	r := NewResolver(nil, WithClock(clock), WithLocation(tokyo))
	assert.Equal(t, Date{Year: 2024, Month: time.May, Day: 2}, r.Today())
}

func TestResolve_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	prev := tracer
	tracer = tp.Tracer("test")
	t.Cleanup(func() { tracer = prev })

	r := newTestResolver(parisFetcher(t))
	_, err := r.Resolve(context.Background(), "Paris")
	require.NoError(t, err)

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"weather.geocode", "weather.forecast", "weather.resolve"}, names)
}
