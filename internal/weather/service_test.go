package weather

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorgis/weatherproxy/internal/cache"
	"github.com/yorgis/weatherproxy/internal/units"
)

// stubProvider returns a canned forecast, or fails on demand, and counts
// fetches so cache behavior can be asserted.
type stubProvider struct {
	name    string
	fail    error
	fetches int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Forecast(_ context.Context, _, _ float64, _ *time.Location, days int) (*RawForecast, error) {
	atomic.AddInt64(&s.fetches, 1)
	if s.fail != nil {
		return nil, s.fail
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	raw := &RawForecast{
		Provider: s.name,
		WindUnit: WindKmh,
		Current:  RawCurrent{Temp: f(11.2), WindSpeed: f(14.5)},
	}
	for i := 0; i < days*24; i++ {
		temp := 10 + float64(i%24)/10
		raw.Hourly = append(raw.Hourly, RawHour{
			Time: start.Add(time.Duration(i) * time.Hour),
			Temp: &temp,
		})
	}
	for i := 0; i < days; i++ {
		raw.Daily = append(raw.Daily, RawDay{
			Date:    start.AddDate(0, 0, i),
			TempMax: f(12 + float64(i)),
			TempMin: f(4 + float64(i)),
		})
	}
	return raw, nil
}

func newTestService(prov Provider) (*Service, *cache.MemoryBackend) {
	backend := cache.NewMemoryBackend(0)
	svc := NewService(backend, []Provider{prov}, nil, Config{
		CacheTTL:     time.Hour,
		FetchTimeout: time.Second,
	})
	return svc, backend
}

func londonParams() RequestParams {
	return RequestParams{
		Latitude:  51.5,
		Longitude: -0.12,
		Timezone:  "Europe/London",
		Units:     units.Metric,
		Provider:  "stub",
	}
}

func TestHandleEndToEndShape(t *testing.T) {
	svc, _ := newTestService(&stubProvider{name: "stub"})

	resp, err := svc.Handle(context.Background(), londonParams())
	require.NoError(t, err)

	assert.Len(t, resp.Hourly, 24)
	assert.Len(t, resp.Daily, 7)
	assert.Equal(t, "miss", resp.Meta.CacheStatus)
	assert.Equal(t, "stub", resp.Meta.Provider)
	assert.Equal(t, "Europe/London", resp.Meta.Timezone)
	assert.NotEmpty(t, resp.Meta.RequestID)

	// Hourly times strictly increase in local time.
	for i := 1; i < len(resp.Hourly); i++ {
		assert.Greater(t, resp.Hourly[i].Time, resp.Hourly[i-1].Time,
			"hourly[%d]=%s not after hourly[%d]=%s", i, resp.Hourly[i].Time, i-1, resp.Hourly[i-1].Time)
	}
}

func TestHandleIdempotentWithinTTL(t *testing.T) {
	prov := &stubProvider{name: "stub"}
	svc, _ := newTestService(prov)

	_, err := svc.Handle(context.Background(), londonParams())
	require.NoError(t, err)
	resp, err := svc.Handle(context.Background(), londonParams())
	require.NoError(t, err)

	assert.Equal(t, "hit", resp.Meta.CacheStatus)
	assert.EqualValues(t, 1, atomic.LoadInt64(&prov.fetches),
		"two identical requests within the TTL must fetch upstream once")
}

func TestHandleForceRefreshFetchesAgain(t *testing.T) {
	prov := &stubProvider{name: "stub"}
	svc, _ := newTestService(prov)

	_, err := svc.Handle(context.Background(), londonParams())
	require.NoError(t, err)

	params := londonParams()
	params.ForceRefresh = true
	resp, err := svc.Handle(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, "miss", resp.Meta.CacheStatus)
	assert.EqualValues(t, 2, atomic.LoadInt64(&prov.fetches))
}

func TestHandleStaleFallback(t *testing.T) {
	prov := &stubProvider{name: "stub"}
	svc, _ := newTestService(prov)

	// Populate the cache, then break the provider.
	first, err := svc.Handle(context.Background(), londonParams())
	require.NoError(t, err)
	prov.fail = NewFetchError("stub", FetchUnavailable, errors.New("connection refused"))

	params := londonParams()
	params.ForceRefresh = true
	resp, err := svc.Handle(context.Background(), params)
	require.NoError(t, err, "a cached entry must shadow the provider outage")

	assert.Equal(t, "stale", resp.Meta.CacheStatus)
	assert.Equal(t, first.Current.Temp, resp.Current.Temp)
}

func TestHandleNoCacheNoFallbackReturnsTypedError(t *testing.T) {
	prov := &stubProvider{
		name: "stub",
		fail: NewFetchError("stub", FetchUnavailable, errors.New("connection refused")),
	}
	svc, _ := newTestService(prov)

	resp, err := svc.Handle(context.Background(), londonParams())
	assert.Nil(t, resp)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, FetchUnavailable, KindOf(err))
}

func TestHandleRateLimitKindSurvivesToCaller(t *testing.T) {
	prov := &stubProvider{
		name: "stub",
		fail: NewFetchError("stub", FetchRateLimited, errors.New("status 429")),
	}
	svc, _ := newTestService(prov)

	_, err := svc.Handle(context.Background(), londonParams())
	require.Error(t, err)
	assert.Equal(t, FetchRateLimited, KindOf(err))
}

func TestHandleClampsAndDefaults(t *testing.T) {
	prov := &stubProvider{name: "stub"}
	svc, _ := newTestService(prov)

	resp, err := svc.Handle(context.Background(), RequestParams{
		Latitude:  95,          // clamped to 90
		Longitude: -200,        // clamped to -180
		Timezone:  "Not/AZone", // falls back to UTC
		Provider:  "nonexistent",
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, resp.Meta.Coordinates.Lat)
	assert.Equal(t, -180.0, resp.Meta.Coordinates.Lon)
	assert.Equal(t, "UTC", resp.Meta.Timezone)
	assert.Equal(t, "stub", resp.Meta.Provider, "unknown provider clamps to the default")
}

func TestHandleNeverPanicsAcrossCoordinateSpace(t *testing.T) {
	prov := &stubProvider{name: "stub"}
	svc, _ := newTestService(prov)

	for _, lat := range []float64{-90, -45.5, 0, 45.5, 90} {
		for _, lon := range []float64{-180, -0.12, 0, 74.0060, 180} {
			resp, err := svc.Handle(context.Background(), RequestParams{Latitude: lat, Longitude: lon})
			require.NoError(t, err)
			require.NotNil(t, resp)
		}
	}
}
