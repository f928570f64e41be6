package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yorgis/weatherproxy/internal/weather"
)

// openMeteoLayout is the local-time format Open-Meteo uses when a timezone
// query parameter is passed.
const openMeteoLayout = "2006-01-02T15:04"

// OpenMeteo adapts the Open-Meteo forecast API. It needs no API key and
// returns current, hourly and daily blocks in one call, wind in km/h.
type OpenMeteo struct {
	baseURL string
	cfg     Config
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteo(client *http.Client, userAgent string) *OpenMeteo {
	return &OpenMeteo{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		cfg: Config{
			Client:     client,
			UserAgent:  userAgent,
			MaxElapsed: 10 * time.Second,
		},
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteo) Name() string { return "openmeteo" }

// SetBaseURL points the adapter at a different server, for tests.
func (p *OpenMeteo) SetBaseURL(u string) { p.baseURL = u }

type openMeteoResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Current   struct {
		Temperature   *float64 `json:"temperature_2m"`
		FeelsLike     *float64 `json:"apparent_temperature"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WindDirection *float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		PrecipChance  []*float64 `json:"precipitation_probability"`
		Precipitation []*float64 `json:"precipitation"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
	} `json:"hourly"`
	Daily struct {
		Time         []string   `json:"time"`
		TempMax      []*float64 `json:"temperature_2m_max"`
		TempMin      []*float64 `json:"temperature_2m_min"`
		Sunrise      []string   `json:"sunrise"`
		Sunset       []string   `json:"sunset"`
		PrecipSum    []*float64 `json:"precipitation_sum"`
		PrecipChance []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

func (p *OpenMeteo) Forecast(ctx context.Context, lat, lon float64, loc *time.Location, days int) (*weather.RawForecast, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("timezone", loc.String())
	values.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,wind_speed_10m,wind_direction_10m")
	values.Set("hourly", "temperature_2m,precipitation_probability,precipitation,wind_speed_10m,wind_direction_10m")
	values.Set("daily", "temperature_2m_max,temperature_2m_min,sunrise,sunset,precipitation_sum,precipitation_probability_max")
	values.Set("forecast_days", strconv.Itoa(days))

	body, err := fetchJSON(ctx, p.cfg, p.circuit, p.Name(), p.baseURL+"?"+values.Encode())
	if err != nil {
		return nil, err
	}

	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, malformed(p.Name(), fmt.Errorf("unmarshal: %w", err))
	}
	if data.Latitude == nil || data.Longitude == nil || len(data.Hourly.Time) == 0 {
		return nil, malformed(p.Name(), fmt.Errorf("response missing coordinate echo or hourly block"))
	}

	raw := &weather.RawForecast{
		Provider: p.Name(),
		WindUnit: weather.WindKmh,
		Current: weather.RawCurrent{
			Temp:      data.Current.Temperature,
			FeelsLike: data.Current.FeelsLike,
			Humidity:  data.Current.Humidity,
			Precip:    data.Current.Precipitation,
			WindSpeed: data.Current.WindSpeed,
			WindDir:   data.Current.WindDirection,
		},
	}

	for i, ts := range data.Hourly.Time {
		t, err := time.ParseInLocation(openMeteoLayout, ts, loc)
		if err != nil {
			continue
		}
		raw.Hourly = append(raw.Hourly, weather.RawHour{
			Time:         t,
			Temp:         at(data.Hourly.Temperature, i),
			Precip:       at(data.Hourly.Precipitation, i),
			PrecipChance: at(data.Hourly.PrecipChance, i),
			WindSpeed:    at(data.Hourly.WindSpeed, i),
			WindDir:      at(data.Hourly.WindDirection, i),
		})
	}

	for i, ds := range data.Daily.Time {
		date, err := time.ParseInLocation("2006-01-02", ds, loc)
		if err != nil {
			continue
		}
		day := weather.RawDay{
			Date:         date,
			TempMax:      at(data.Daily.TempMax, i),
			TempMin:      at(data.Daily.TempMin, i),
			Precip:       at(data.Daily.PrecipSum, i),
			PrecipChance: at(data.Daily.PrecipChance, i),
			Sunrise:      parseLocalTime(data.Daily.Sunrise, i, loc),
			Sunset:       parseLocalTime(data.Daily.Sunset, i, loc),
		}
		raw.Daily = append(raw.Daily, day)
	}

	// Today's sun times double as the current conditions' sun times.
	if len(raw.Daily) > 0 {
		raw.Current.Sunrise = raw.Daily[0].Sunrise
		raw.Current.Sunset = raw.Daily[0].Sunset
	}

	return raw, nil
}

func parseLocalTime(vals []string, i int, loc *time.Location) *time.Time {
	if i >= len(vals) {
		return nil
	}
	t, err := time.ParseInLocation(openMeteoLayout, vals[i], loc)
	if err != nil {
		return nil
	}
	return &t
}
