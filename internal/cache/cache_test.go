package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

// failingBackend simulates an unreachable store.
type failingBackend struct{}

func (failingBackend) Get(context.Context, string) (Entry, error) {
	return Entry{}, errors.New("backend down")
}

func (failingBackend) Put(context.Context, string, Entry) error {
	return errors.New("backend down")
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("weather", 4, 51.50001, -0.12001, "Europe/London", "metric", "openmeteo")
	b := Key("weather", 4, 51.50001, -0.12001, "Europe/London", "metric", "openmeteo")
	assert.Equal(t, a, b)
	assert.Equal(t, "weather:51.5000,-0.1200:Europe/London:metric:openmeteo", a)
}

func TestKeyRoundingAbsorbsJitter(t *testing.T) {
	a := Key("weather", 4, 51.500009, -0.120004)
	b := Key("weather", 4, 51.500011, -0.119996)
	assert.Equal(t, a, b)

	// Higher precision keeps them apart.
	assert.NotEqual(t, Key("weather", 6, 51.500009, 0), Key("weather", 6, 51.500011, 0))
}

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	backend := NewMemoryBackend(0)
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Value: "fresh"}, nil
	}

	v, status, err := GetOrCompute(context.Background(), backend, "weather:k", time.Hour, false, compute)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, "fresh", v.Value)

	v, status, err = GetOrCompute(context.Background(), backend, "weather:k", time.Hour, false, compute)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, status)
	assert.Equal(t, "fresh", v.Value)
	assert.Equal(t, 1, calls, "second identical request must not recompute")
}

func TestGetOrComputeForceRefreshBypassesCache(t *testing.T) {
	backend := NewMemoryBackend(0)
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Value: "fresh"}, nil
	}

	_, _, err := GetOrCompute(context.Background(), backend, "weather:k", time.Hour, false, compute)
	require.NoError(t, err)
	_, status, err := GetOrCompute(context.Background(), backend, "weather:k", time.Hour, true, compute)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeStaleFallback(t *testing.T) {
	backend := NewMemoryBackend(0)
	stored, err := json.Marshal(payload{Value: "old"})
	require.NoError(t, err)
	// Entry expired an hour ago.
	require.NoError(t, backend.Put(context.Background(), "weather:k", Entry{
		Key:        "weather:k",
		Payload:    stored,
		StoredAt:   time.Now().Add(-2 * time.Hour),
		TTLSeconds: 3600,
	}))

	v, status, err := GetOrCompute(context.Background(), backend, "weather:k", time.Hour, false, func(context.Context) (payload, error) {
		return payload{}, errors.New("upstream down")
	})
	require.NoError(t, err, "stale entry must shadow the compute failure")
	assert.Equal(t, StatusStale, status)
	assert.Equal(t, "old", v.Value)
}

func TestGetOrComputeNoEntryPropagatesFailure(t *testing.T) {
	backend := NewMemoryBackend(0)
	upstream := errors.New("upstream down")

	_, _, err := GetOrCompute(context.Background(), backend, "weather:k", time.Hour, false, func(context.Context) (payload, error) {
		return payload{}, upstream
	})
	assert.ErrorIs(t, err, upstream)
}

func TestGetOrComputeBackendFailureDegradesToCompute(t *testing.T) {
	calls := 0
	v, status, err := GetOrCompute(context.Background(), failingBackend{}, "weather:k", time.Hour, false, func(context.Context) (payload, error) {
		calls++
		return payload{Value: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, status)
	assert.Equal(t, "direct", v.Value)
	assert.Equal(t, 1, calls)
}

func TestMemoryBackendEvictsOldestAtCapacity(t *testing.T) {
	backend := NewMemoryBackend(2)
	ctx := context.Background()
	base := time.Now()

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, backend.Put(ctx, key, Entry{
			Key:      key,
			Payload:  json.RawMessage(`{}`),
			StoredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	assert.Equal(t, 2, backend.Len())
	_, err := backend.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = backend.Get(ctx, "c")
	assert.NoError(t, err)
}
