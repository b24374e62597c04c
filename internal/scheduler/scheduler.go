package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-now/internal/weather"
)

const warmTimeout = 30 * time.Second

// Warmer is the part of the day cache the scheduler drives.
type Warmer interface {
	City() string
	GetOrResolve(ctx context.Context, today weather.Date) (weather.Weather, error)
}

// Scheduler refreshes the same-day cache once a day, shortly after the
// date rolls over, so the first request of the day is served from cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cache     Warmer
	location  *time.Location
	at        string
	now       func() time.Time
	log       *slog.Logger
}

// New creates a Scheduler that warms cache daily at the wall-clock time at
// ("HH:MM" or "HH:MM:SS") in loc.
func New(cache Warmer, loc *time.Location, at string, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		cache:     cache,
		location:  loc,
		at:        at,
		now:       time.Now,
		log:       log,
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cache == nil {
		s.log.Info("scheduler: no cache configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
		defer cancel()
		s.warm(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler: cache warm-up scheduled", "city", s.cache.City(), "at", s.at, "tz", s.location.String())
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) warm(ctx context.Context) {
	today := weather.DateOf(s.now().In(s.location))

	s.log.Info("scheduler: warming day cache", "city", s.cache.City(), "date", today.String())
	if _, err := s.cache.GetOrResolve(ctx, today); err != nil {
		s.log.Error("scheduler: cache warm-up failed", "city", s.cache.City(), "err", err)
		return
	}
	s.log.Info("scheduler: day cache warmed", "city", s.cache.City(), "date", today.String())
}
