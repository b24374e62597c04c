package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-now/internal/weather"
)

type fakeWarmer struct {
	mu   sync.Mutex
	days []weather.Date
	err  error
}

func (f *fakeWarmer) City() string { return "London" }

func (f *fakeWarmer) GetOrResolve(_ context.Context, today weather.Date) (weather.Weather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, today)
	if f.err != nil {
		return weather.Weather{}, f.err
	}
	return weather.Weather{Date: today, City: "London"}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestWarm_UsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	w := &fakeWarmer{}
	var logs bytes.Buffer

	s := New(w, tokyo, "00:00:05", newTestLogger(&logs))
	s.now = func() time.Time { return time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC) }

	s.warm(context.Background())

	require.Len(t, w.days, 1)
	assert.Equal(t, weather.Date{Year: 2024, Month: time.May, Day: 2}, w.days[0])
	assert.Contains(t, logs.String(), "day cache warmed")
}

func TestWarm_LogsFailure(t *testing.T) {
	w := &fakeWarmer{err: errors.New("upstream down")}
	var logs bytes.Buffer

	s := New(w, time.UTC, "00:00:05", newTestLogger(&logs))
	s.warm(context.Background())

	assert.Len(t, w.days, 1)
	assert.Contains(t, logs.String(), "cache warm-up failed")
	assert.Contains(t, logs.String(), "upstream down")
}

func TestStartStop(t *testing.T) {
	var logs bytes.Buffer
	s := New(&fakeWarmer{}, time.UTC, "03:00", newTestLogger(&logs))

	require.NoError(t, s.Start())
	s.Stop()
	assert.Contains(t, logs.String(), "cache warm-up scheduled")
}

func TestStart_InvalidTime(t *testing.T) {
	s := New(&fakeWarmer{}, time.UTC, "25:99", newTestLogger(&bytes.Buffer{}))
	assert.Error(t, s.Start())
}

func TestStart_NoCache(t *testing.T) {
	s := New(nil, nil, "00:00", newTestLogger(&bytes.Buffer{}))
	assert.NoError(t, s.Start())
	s.Stop()
}
