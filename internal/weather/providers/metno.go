package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yorgis/weatherproxy/internal/weather"
)

// MetNo adapts the MET Norway locationforecast API. The API is keyless but
// requires an identifying User-Agent. The compact timeseries carries no
// daily granularity, so the normalizer aggregates daily entries; sun times
// for the current day come from the separate sunrise endpoint, best-effort.
type MetNo struct {
	baseURL    string
	sunriseURL string
	cfg        Config
	circuit    *gobreaker.CircuitBreaker
}

func NewMetNo(client *http.Client, userAgent string) *MetNo {
	return &MetNo{
		baseURL:    "https://api.met.no/weatherapi/locationforecast/2.0/compact",
		sunriseURL: "https://api.met.no/weatherapi/sunrise/3.0/sun",
		cfg: Config{
			Client:     client,
			UserAgent:  userAgent,
			MaxElapsed: 10 * time.Second,
		},
		circuit: newCircuit("metno"),
	}
}

func (p *MetNo) Name() string { return "metno" }

// SetBaseURLs points the adapter at different servers, for tests.
func (p *MetNo) SetBaseURLs(forecast, sunrise string) {
	p.baseURL = forecast
	p.sunriseURL = sunrise
}

type metNoResponse struct {
	Properties struct {
		Timeseries []struct {
			Time time.Time `json:"time"`
			Data struct {
				Instant struct {
					Details struct {
						AirTemperature    *float64 `json:"air_temperature"`
						RelativeHumidity  *float64 `json:"relative_humidity"`
						WindSpeed         *float64 `json:"wind_speed"`
						WindFromDirection *float64 `json:"wind_from_direction"`
					} `json:"details"`
				} `json:"instant"`
				Next1Hours *struct {
					Details struct {
						PrecipitationAmount *float64 `json:"precipitation_amount"`
					} `json:"details"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

func (p *MetNo) Forecast(ctx context.Context, lat, lon float64, loc *time.Location, days int) (*weather.RawForecast, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))

	body, err := fetchJSON(ctx, p.cfg, p.circuit, p.Name(), p.baseURL+"?"+values.Encode())
	if err != nil {
		return nil, err
	}

	var data metNoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, malformed(p.Name(), fmt.Errorf("unmarshal: %w", err))
	}
	series := data.Properties.Timeseries
	if len(series) == 0 {
		return nil, malformed(p.Name(), fmt.Errorf("empty timeseries"))
	}

	now := series[0].Data.Instant.Details
	raw := &weather.RawForecast{
		Provider: p.Name(),
		WindUnit: weather.WindMS,
		Current: weather.RawCurrent{
			Temp:      now.AirTemperature,
			Humidity:  now.RelativeHumidity,
			WindSpeed: now.WindSpeed,
			WindDir:   now.WindFromDirection,
		},
	}
	if series[0].Data.Next1Hours != nil {
		raw.Current.Precip = series[0].Data.Next1Hours.Details.PrecipitationAmount
	}

	for _, entry := range series {
		h := weather.RawHour{
			Time:      entry.Time,
			Temp:      entry.Data.Instant.Details.AirTemperature,
			WindSpeed: entry.Data.Instant.Details.WindSpeed,
			WindDir:   entry.Data.Instant.Details.WindFromDirection,
		}
		if entry.Data.Next1Hours != nil {
			h.Precip = entry.Data.Next1Hours.Details.PrecipitationAmount
		}
		raw.Hourly = append(raw.Hourly, h)
	}

	// Daily stays empty; the normalizer aggregates from hourly.

	sunrise, sunset := p.fetchSunTimes(ctx, lat, lon, loc)
	raw.Current.Sunrise = sunrise
	raw.Current.Sunset = sunset

	return raw, nil
}

type sunResponse struct {
	Properties struct {
		Sunrise struct {
			Time string `json:"time"`
		} `json:"sunrise"`
		Sunset struct {
			Time string `json:"time"`
		} `json:"sunset"`
	} `json:"properties"`
}

// fetchSunTimes asks the sunrise endpoint for today's sun times. Sun times
// are decoration; any failure just leaves them unset.
func (p *MetNo) fetchSunTimes(ctx context.Context, lat, lon float64, loc *time.Location) (*time.Time, *time.Time) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("date", time.Now().In(loc).Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.sunriseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		log.Printf("metno: sunrise fetch failed: %v", err)
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var data sunResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, nil
	}
	return parseSunTime(data.Properties.Sunrise.Time), parseSunTime(data.Properties.Sunset.Time)
}

func parseSunTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
