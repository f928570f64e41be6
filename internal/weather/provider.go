package weather

import (
	"context"
	"time"
)

// ForecastDays is the horizon requested from every provider. Hourly output
// is truncated to 24 points and daily to 7 after normalization.
const ForecastDays = 7

// Provider abstracts an upstream weather source (e.g. Open-Meteo,
// MET Norway). Adapters absorb every provider difference — field names,
// source units, whether daily series or sun times are natively present —
// and return the canonical RawForecast, or a *FetchError.
type Provider interface {
	Name() string
	Forecast(ctx context.Context, lat, lon float64, loc *time.Location, days int) (*RawForecast, error)
}
