// Package cache is the single read/write path for everything this service
// remembers: normalized weather snapshots and geocode results. It wraps a
// pluggable key-value backend with get-or-compute semantics and a stale-serve
// fallback, so an upstream outage degrades to "last known good" instead of an
// error whenever a prior fetch succeeded for the same key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yorgis/weatherproxy/internal/metrics"
)

// ErrNotFound is returned by a Backend when no entry exists for a key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is the stored envelope for a cached payload. It carries its own
// expiry so staleness can be judged without asking the backend.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   time.Time       `json:"storedAt"`
	TTLSeconds int             `json:"ttlSeconds"`
}

// Expired reports whether the entry is past its freshness window at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.StoredAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

// Backend is the key-value contract the cache layer consumes. Get must
// return expired entries rather than evicting them eagerly; the stale-serve
// policy depends on them being readable past expiry.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

// Status describes how a cached value was obtained.
type Status string

const (
	StatusHit   Status = "hit"
	StatusMiss  Status = "miss"
	StatusStale Status = "stale"
)

// Key builds a deterministic cache key from a keyspace prefix, coordinates
// rounded to a fixed number of decimals, and any further distinguishing
// parts. Rounding bounds cache fragmentation from GPS jitter; the decimal
// count is a tunable, not a constant.
func Key(prefix string, decimals int, lat, lon float64, parts ...string) string {
	key := fmt.Sprintf("%s:%.*f,%.*f", prefix, decimals, lat, decimals, lon)
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	return key
}

// GetOrCompute returns the value for key, consulting the backend first and
// falling back to compute on a miss or forced refresh. The policy:
//
//  1. Unless force is set, a fresh entry is decoded and returned as a hit.
//  2. Otherwise compute runs. On success the result is stored with the given
//     TTL and returned as a miss. The write uses a context detached from the
//     caller so a completed fetch is not wasted when the caller goes away.
//  3. On compute failure any existing entry, fresh or not, is returned as
//     stale. Only with no entry at all does the failure propagate.
//
// Backend failures never fail the request; they degrade to direct compute.
func GetOrCompute[T any](ctx context.Context, b Backend, key string, ttl time.Duration, force bool, compute func(context.Context) (T, error)) (T, Status, error) {
	var zero T
	keyspace := keyspaceOf(key)

	if !force {
		entry, err := b.Get(ctx, key)
		switch {
		case err == nil && !entry.Expired(time.Now()):
			var value T
			if jsonErr := json.Unmarshal(entry.Payload, &value); jsonErr == nil {
				metrics.CacheResultsTotal.WithLabelValues(keyspace, string(StatusHit)).Inc()
				return value, StatusHit, nil
			}
			// Undecodable payload is treated as a miss and overwritten below.
			log.Printf("cache: discarding undecodable entry for %s", key)
		case err != nil && !errors.Is(err, ErrNotFound):
			metrics.CacheBackendErrorsTotal.WithLabelValues("get").Inc()
			log.Printf("cache: backend get failed for %s: %v", key, err)
		}
	}

	value, computeErr := compute(ctx)
	if computeErr == nil {
		payload, err := json.Marshal(value)
		if err != nil {
			log.Printf("cache: marshal failed for %s: %v", key, err)
		} else {
			entry := Entry{
				Key:        key,
				Payload:    payload,
				StoredAt:   time.Now().UTC(),
				TTLSeconds: int(ttl.Seconds()),
			}
			if err := b.Put(context.WithoutCancel(ctx), key, entry); err != nil {
				metrics.CacheBackendErrorsTotal.WithLabelValues("put").Inc()
				log.Printf("cache: backend put failed for %s: %v", key, err)
			}
		}
		metrics.CacheResultsTotal.WithLabelValues(keyspace, string(StatusMiss)).Inc()
		return value, StatusMiss, nil
	}

	// Stale-serve: any prior entry beats surfacing the failure.
	entry, err := b.Get(context.WithoutCancel(ctx), key)
	if err == nil {
		var stale T
		if jsonErr := json.Unmarshal(entry.Payload, &stale); jsonErr == nil {
			metrics.CacheResultsTotal.WithLabelValues(keyspace, string(StatusStale)).Inc()
			log.Printf("cache: serving stale entry for %s after compute failure: %v", key, computeErr)
			return stale, StatusStale, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		metrics.CacheBackendErrorsTotal.WithLabelValues("get").Inc()
	}

	return zero, StatusMiss, computeErr
}

func keyspaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
