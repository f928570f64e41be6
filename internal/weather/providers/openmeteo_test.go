package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorgis/weatherproxy/internal/weather"
)

func sampleOpenMeteoBody() string {
	hours := make([]string, 0, 48)
	temps := make([]string, 0, 48)
	for i := 0; i < 48; i++ {
		day := 1 + i/24
		hours = append(hours, fmt.Sprintf("%q", fmt.Sprintf("2026-03-%02dT%02d:00", day, i%24)))
		temps = append(temps, fmt.Sprintf("%.1f", 10+float64(i%24)/10))
	}
	return fmt.Sprintf(`{
		"latitude": 51.5, "longitude": -0.12,
		"current": {
			"temperature_2m": 11.2, "apparent_temperature": 9.8,
			"relative_humidity_2m": 81, "precipitation": 0.2,
			"wind_speed_10m": 14.5, "wind_direction_10m": 230
		},
		"hourly": {
			"time": [%s],
			"temperature_2m": [%s],
			"precipitation_probability": [30, null],
			"precipitation": [0.1, 0.0],
			"wind_speed_10m": [14.5, 12.0],
			"wind_direction_10m": [230, 225]
		},
		"daily": {
			"time": ["2026-03-01", "2026-03-02"],
			"temperature_2m_max": [12.4, 13.0],
			"temperature_2m_min": [4.1, 5.2],
			"sunrise": ["2026-03-01T06:48", "2026-03-02T06:46"],
			"sunset": ["2026-03-01T17:43", "2026-03-02T17:45"],
			"precipitation_sum": [1.2, 0.0],
			"precipitation_probability_max": [45, 10]
		}
	}`, strings.Join(hours, ","), strings.Join(temps, ","))
}

func newTestOpenMeteo(t *testing.T, handler http.HandlerFunc) *OpenMeteo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenMeteo(srv.Client(), "weatherproxy-test")
	p.cfg.MaxElapsed = 100 * time.Millisecond
	p.SetBaseURL(srv.URL)
	return p
}

func TestOpenMeteoForecast(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Europe/London", r.URL.Query().Get("timezone"))
		assert.Equal(t, "7", r.URL.Query().Get("forecast_days"))
		w.Write([]byte(sampleOpenMeteoBody()))
	})

	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	raw, err := p.Forecast(context.Background(), 51.5, -0.12, loc, weather.ForecastDays)
	require.NoError(t, err)

	assert.Equal(t, weather.WindKmh, raw.WindUnit)
	require.NotNil(t, raw.Current.Temp)
	assert.InDelta(t, 11.2, *raw.Current.Temp, 1e-9)
	require.NotNil(t, raw.Current.Sunrise, "current sun times come from daily[0]")

	assert.Len(t, raw.Hourly, 48)
	// Series shorter than the time axis and nulls become nil, not zeros.
	require.NotNil(t, raw.Hourly[0].PrecipChance)
	assert.Nil(t, raw.Hourly[1].PrecipChance)
	assert.Nil(t, raw.Hourly[2].PrecipChance)

	require.Len(t, raw.Daily, 2)
	assert.InDelta(t, 12.4, *raw.Daily[0].TempMax, 1e-9)
	assert.Equal(t, "06:48", raw.Daily[0].Sunrise.In(loc).Format("15:04"))
}

func TestOpenMeteoMalformedBody(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"unexpected":`))
	})

	_, err := p.Forecast(context.Background(), 51.5, -0.12, time.UTC, weather.ForecastDays)
	require.Error(t, err)
	assert.Equal(t, weather.FetchMalformed, weather.KindOf(err))
}

func TestOpenMeteoMissingCoordinateEcho(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"hourly":{"time":[]}}`))
	})

	_, err := p.Forecast(context.Background(), 51.5, -0.12, time.UTC, weather.ForecastDays)
	require.Error(t, err)
	assert.Equal(t, weather.FetchMalformed, weather.KindOf(err))
}

func TestOpenMeteoRateLimited(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.Forecast(context.Background(), 51.5, -0.12, time.UTC, weather.ForecastDays)
	require.Error(t, err)
	assert.Equal(t, weather.FetchRateLimited, weather.KindOf(err))

	var fe *weather.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "openmeteo", fe.Provider)
}

func TestOpenMeteoServerErrorIsUnavailable(t *testing.T) {
	p := newTestOpenMeteo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.Forecast(context.Background(), 51.5, -0.12, time.UTC, weather.ForecastDays)
	require.Error(t, err)
	assert.Equal(t, weather.FetchUnavailable, weather.KindOf(err))
}
