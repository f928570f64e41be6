package weather

import (
	"time"

	"github.com/yorgis/weatherproxy/internal/units"
)

// Sentinels substituted for upstream fields that are absent at an index.
// They keep the hourly/daily sequences dense so positional access never
// hits a hole.
const (
	SentinelValue = "N/A"
	SentinelClock = "--:--"
)

// RequestParams identifies one weather request. It is immutable once built
// and is the sole input to the cache key.
type RequestParams struct {
	Latitude     float64
	Longitude    float64
	Timezone     string
	Units        units.System
	Provider     string
	ForceRefresh bool
}

// Clamped returns a copy with latitude forced into [-90, 90] and longitude
// into [-180, 180]. Out-of-range coordinates are clamped, never rejected;
// only structurally missing coordinates fail validation before this point.
func (p RequestParams) Clamped() RequestParams {
	p.Latitude = clamp(p.Latitude, -90, 90)
	p.Longitude = clamp(p.Longitude, -180, 180)
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WeatherSnapshot is the canonical normalized view of one forecast: all
// values pre-converted to the requested unit system and formatted for the
// request timezone. Hourly and daily sequences are chronological and dense.
type WeatherSnapshot struct {
	Current CurrentConditions `json:"current"`
	Hourly  []HourPoint       `json:"hourly"`
	Daily   []DayPoint        `json:"daily"`
}

type CurrentConditions struct {
	Temp          string `json:"temp"`
	FeelsLike     string `json:"feelsLike"`
	Humidity      string `json:"humidity"`
	Precipitation string `json:"precipitation"`
	WindSpeed     string `json:"windSpeed"`
	WindDirection string `json:"windDirection"`
	Sunrise       string `json:"sunrise"`
	Sunset        string `json:"sunset"`
}

type HourPoint struct {
	Time          string `json:"time"`
	Temp          string `json:"temp"`
	Precipitation string `json:"precipitation"`
	PrecipChance  string `json:"precipitationChance"`
	WindSpeed     string `json:"windSpeed"`
	WindDirection string `json:"windDirection"`
}

type DayPoint struct {
	Date          string `json:"date"`
	TempMax       string `json:"tempMax"`
	TempMin       string `json:"tempMin"`
	Precipitation string `json:"precipitation"`
	PrecipChance  string `json:"precipitationChance"`
	Sunrise       string `json:"sunrise"`
	Sunset        string `json:"sunset"`
}

// WindUnit declares the unit a raw forecast's wind speeds are measured in.
// The normalizer branches on this declaration, never on provider identity.
type WindUnit string

const (
	WindMS  WindUnit = "ms"
	WindKmh WindUnit = "kmh"
)

// RawForecast is the canonical provider-neutral intermediate every adapter
// produces: numeric series in fixed source units (temperature °C,
// precipitation mm, wind per WindUnit), timestamps as absolute instants.
// Absent fields are nil. An empty Daily slice means the provider exposes no
// daily granularity and the normalizer aggregates one from Hourly.
type RawForecast struct {
	Provider string
	WindUnit WindUnit
	Current  RawCurrent
	Hourly   []RawHour
	Daily    []RawDay
}

type RawCurrent struct {
	Temp      *float64
	FeelsLike *float64
	Humidity  *float64
	Precip    *float64
	WindSpeed *float64
	WindDir   *float64
	Sunrise   *time.Time
	Sunset    *time.Time
}

type RawHour struct {
	Time         time.Time
	Temp         *float64
	Precip       *float64
	PrecipChance *float64
	WindSpeed    *float64
	WindDir      *float64
}

type RawDay struct {
	Date         time.Time
	TempMax      *float64
	TempMin      *float64
	Precip       *float64
	PrecipChance *float64
	Sunrise      *time.Time
	Sunset       *time.Time
}
