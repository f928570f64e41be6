package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yorgis/weatherproxy/internal/cache"
	"github.com/yorgis/weatherproxy/internal/geocode"
	"github.com/yorgis/weatherproxy/internal/units"
)

// Config tunes the coordinator.
type Config struct {
	// CacheTTL is the freshness window for weather snapshots.
	CacheTTL time.Duration

	// FetchTimeout bounds every upstream call.
	FetchTimeout time.Duration

	// CoordDecimals is the coordinate rounding applied to cache keys.
	CoordDecimals int

	// DefaultProvider answers requests that name no provider (or an
	// unknown one).
	DefaultProvider string
}

// Meta is the diagnostic envelope attached to every response, success or
// failure.
type Meta struct {
	ProcessedMs int64       `json:"processedMs"`
	Coordinates Coordinates `json:"coordinates"`
	Timezone    string      `json:"timezone"`
	CacheStatus string      `json:"cacheStatus"`
	Provider    string      `json:"provider"`
	RequestID   string      `json:"requestId"`
	Timestamp   time.Time   `json:"timestamp"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Response is the full weather answer for one request.
type Response struct {
	Current CurrentConditions `json:"current"`
	Hourly  []HourPoint       `json:"hourly"`
	Daily   []DayPoint        `json:"daily"`
	Meta    Meta              `json:"meta"`
}

// Service coordinates one request: clamp parameters, consult the cache,
// fetch and normalize on a miss, fall back to stale data on failure.
type Service struct {
	backend   cache.Backend
	providers map[string]Provider
	geocoder  *geocode.Resolver
	cfg       Config
}

// NewService wires the coordinator. The first provider in provs is used as
// the default when cfg.DefaultProvider is empty.
func NewService(backend cache.Backend, provs []Provider, geocoder *geocode.Resolver, cfg Config) *Service {
	byName := make(map[string]Provider, len(provs))
	for _, p := range provs {
		byName[p.Name()] = p
	}
	if cfg.DefaultProvider == "" && len(provs) > 0 {
		cfg.DefaultProvider = provs[0].Name()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.CoordDecimals <= 0 {
		cfg.CoordDecimals = 4
	}
	return &Service{
		backend:   backend,
		providers: byName,
		geocoder:  geocoder,
		cfg:       cfg,
	}
}

// Handle runs the request pipeline: validate/clamp, cache lookup, on miss
// fetch and normalize, on failure stale-serve. It returns either a response
// or an error; for total failures (no data, no cache) the error is a
// *ServiceError carrying the best-effort geocode result.
func (s *Service) Handle(ctx context.Context, params RequestParams) (*Response, error) {
	start := time.Now()
	p := params.Clamped()

	loc, tzName := resolveTimezone(p.Timezone)
	if p.Units == "" {
		p.Units = units.Metric
	}

	provider, ok := s.providers[p.Provider]
	if !ok {
		// Unknown provider names are clamped to the default rather than
		// rejected, like out-of-range coordinates.
		provider, ok = s.providers[s.cfg.DefaultProvider]
		if !ok {
			return nil, &ServiceError{Message: "no weather providers configured"}
		}
	}

	// The geocode lookup is independent of the weather fetch: it runs
	// concurrently on a detached context so a slow resolver can neither
	// block nor fail the weather response. Its result is only consumed on
	// the failure path; either way it pre-warms the geocode cache.
	geoCh := s.resolveLocationAsync(ctx, p.Latitude, p.Longitude)

	key := cache.Key("weather", s.cfg.CoordDecimals, p.Latitude, p.Longitude,
		tzName, string(p.Units), provider.Name())

	snapshot, status, err := cache.GetOrCompute(ctx, s.backend, key, s.cfg.CacheTTL, p.ForceRefresh,
		func(ctx context.Context) (WeatherSnapshot, error) {
			fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
			defer cancel()

			raw, err := provider.Forecast(fctx, p.Latitude, p.Longitude, loc, ForecastDays)
			if err != nil {
				return WeatherSnapshot{}, err
			}
			return Normalize(raw, p.Units, loc), nil
		})
	if err != nil {
		log.Printf("weather: %s fetch failed for %.4f,%.4f with no cached fallback: %v",
			provider.Name(), p.Latitude, p.Longitude, err)
		svcErr := &ServiceError{
			Message: fmt.Sprintf("weather data unavailable from %s", provider.Name()),
			Err:     err,
		}
		// The geocode goroutine is bounded by its own timeout, so waiting
		// here cannot hang.
		if result, ok := <-geoCh; ok {
			svcErr.Location = &result
		}
		return nil, svcErr
	}

	return &Response{
		Current: snapshot.Current,
		Hourly:  snapshot.Hourly,
		Daily:   snapshot.Daily,
		Meta: Meta{
			ProcessedMs: time.Since(start).Milliseconds(),
			Coordinates: Coordinates{Lat: p.Latitude, Lon: p.Longitude},
			Timezone:    tzName,
			CacheStatus: string(status),
			Provider:    provider.Name(),
			RequestID:   uuid.NewString(),
			Timestamp:   time.Now().UTC(),
		},
	}, nil
}

// Providers lists the registered provider names.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

func (s *Service) resolveLocationAsync(ctx context.Context, lat, lon float64) <-chan geocode.Result {
	ch := make(chan geocode.Result, 1)
	if s.geocoder == nil {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		defer cancel()
		ch <- s.geocoder.Resolve(gctx, lat, lon, false)
	}()
	return ch
}

// resolveTimezone loads the requested IANA zone, falling back to UTC for
// empty or unknown names.
func resolveTimezone(name string) (*time.Location, string) {
	if name == "" {
		return time.UTC, "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("weather: unknown timezone %q, using UTC", name)
		return time.UTC, "UTC"
	}
	return loc, loc.String()
}
