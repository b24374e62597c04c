package store

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/weather-now/internal/weather"
)

var (
	// ErrEmpty is returned by Peek before the first successful resolution.
	ErrEmpty = errors.New("day cache is empty")
)

// Recorder is told whether each GetOrResolve call was served from cache.
type Recorder interface {
	CacheResult(hit bool)
}

// entry is replaced wholesale, never mutated.
type entry struct {
	day   weather.Date
	value weather.Weather
}

// DayCache memoizes the weather for one configured city and keeps it until
// the calendar date changes. It holds a single slot shared by all callers.
//
// The slot is read and replaced under a mutex, but resolution runs outside
// it: callers that miss at the same time each resolve, and the last write
// wins.
type DayCache struct {
	lookup   weather.Lookup
	city     string
	recorder Recorder

	mu   sync.RWMutex
	slot *entry
}

// NewDayCache creates an empty cache that resolves city through lookup.
func NewDayCache(lookup weather.Lookup, city string) *DayCache {
	return &DayCache{lookup: lookup, city: city}
}

// WithRecorder attaches a hit/miss recorder and returns c.
func (c *DayCache) WithRecorder(r Recorder) *DayCache {
	c.recorder = r
	return c
}

// City returns the city this cache resolves.
func (c *DayCache) City() string {
	return c.city
}

// GetOrResolve returns the cached weather if it was computed on today,
// otherwise resolves afresh and replaces the slot. A failed resolution
// leaves the previous slot untouched and is not cached.
func (c *DayCache) GetOrResolve(ctx context.Context, today weather.Date) (weather.Weather, error) {
	c.mu.RLock()
	e := c.slot
	c.mu.RUnlock()

	if e != nil && e.day == today {
		c.record(true)
		return e.value, nil
	}
	c.record(false)

	w, err := c.lookup.Resolve(ctx, c.city)
	if err != nil {
		return weather.Weather{}, err
	}

	c.mu.Lock()
	c.slot = &entry{day: today, value: w}
	c.mu.Unlock()

	return w, nil
}

// Peek returns the cached weather and the day it was computed for.
func (c *DayCache) Peek() (weather.Weather, weather.Date, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.slot == nil {
		return weather.Weather{}, weather.Date{}, ErrEmpty
	}
	return c.slot.value, c.slot.day, nil
}

func (c *DayCache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.CacheResult(hit)
	}
}
