package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yorgis/weatherproxy/internal/weather"
)

// Location is a coordinate pair whose forecast the warmer keeps fresh.
type Location struct {
	Lat float64
	Lon float64
}

// Scheduler periodically refreshes the weather cache for configured
// locations so interactive requests for them always hit fresh entries.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	locations []Location
	interval  time.Duration
}

// New creates a new Scheduler.
func New(locations []Location, interval time.Duration, service *weather.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		locations: locations,
		interval:  interval,
	}
}

// Start schedules the periodic warm job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		log.Println("scheduler: no warm locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Printf("scheduler: warming cache for %d locations", len(s.locations))

		var wg sync.WaitGroup
		for _, loc := range s.locations {
			loc := loc
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				// ForceRefresh bypasses the still-fresh entry so the TTL
				// window restarts from this run.
				_, err := s.service.Handle(ctx, weather.RequestParams{
					Latitude:     loc.Lat,
					Longitude:    loc.Lon,
					ForceRefresh: true,
				})
				if err != nil {
					log.Printf("scheduler: warm failed for %.4f,%.4f: %v", loc.Lat, loc.Lon, err)
				}
			}()
		}
		wg.Wait()
		log.Println("scheduler: completed cache warm run")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
