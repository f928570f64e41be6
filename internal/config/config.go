package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig is the full service configuration, populated once at startup
// from the environment (optionally seeded from a .env file).
type AppConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// HTTPTimeout bounds every outbound call to a weather or geocode
	// upstream.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"5s"`

	// OutboundUserAgent identifies this deployment to upstreams. MET Norway
	// rejects requests without a descriptive agent.
	OutboundUserAgent string `envconfig:"OUTBOUND_USER_AGENT" default:"weatherproxy/1.0 (+https://github.com/yorgis/weatherproxy)"`

	// CacheBackend selects "memory" or "sqlite".
	CacheBackend    string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheSQLitePath string        `envconfig:"CACHE_SQLITE_PATH" default:"weatherproxy.db"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"4096"`

	// CacheCoordDecimals is the coordinate rounding applied to weather
	// cache keys. Four decimals is roughly 11 meters.
	CacheCoordDecimals int `envconfig:"CACHE_COORD_DECIMALS" default:"4"`

	GeocodeTTL time.Duration `envconfig:"GEOCODE_TTL" default:"1h"`

	DefaultProvider string `envconfig:"DEFAULT_PROVIDER" default:"openmeteo"`

	// WarmLocations lists "lat,lon" pairs separated by semicolons whose
	// forecasts the scheduler keeps warm, e.g. "51.5,-0.12;48.85,2.35".
	WarmLocations string        `envconfig:"WARM_LOCATIONS"`
	WarmInterval  time.Duration `envconfig:"WARM_INTERVAL" default:"30m"`
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch cfg.CacheBackend {
	case "memory", "sqlite":
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory or sqlite", cfg.CacheBackend)
	}

	if _, err := cfg.ParsedWarmLocations(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParsedWarmLocations parses WARM_LOCATIONS into coordinate pairs.
func (c *AppConfig) ParsedWarmLocations() ([][2]float64, error) {
	if strings.TrimSpace(c.WarmLocations) == "" {
		return nil, nil
	}

	var locs [][2]float64
	for _, pair := range strings.Split(c.WarmLocations, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS entry %q: want \"lat,lon\"", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in WARM_LOCATIONS entry %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in WARM_LOCATIONS entry %q: %w", pair, err)
		}
		locs = append(locs, [2]float64{lat, lon})
	}
	return locs, nil
}
