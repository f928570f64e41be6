// Package geocode maps coordinates to a human-readable city/country pair via
// the Nominatim reverse endpoint. Location labels are cosmetic: every failure
// collapses to "Unknown" instead of an error, and results are cached under a
// coarse coordinate bucket so nearby queries share entries.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/yorgis/weatherproxy/internal/cache"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// coordDecimals buckets geocode keys to ~1 km so nearby lookups hit cache.
const coordDecimals = 2

// Result is a resolved place label. Fields are never empty.
type Result struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Unknown is the result for anything that could not be resolved.
var Unknown = Result{City: "Unknown", Country: "Unknown"}

type Resolver struct {
	client    *http.Client
	backend   cache.Backend
	baseURL   string
	userAgent string
	ttl       time.Duration
}

// NewResolver creates a Resolver backed by the given cache backend.
// Nominatim requires a identifying User-Agent on every request.
func NewResolver(client *http.Client, backend cache.Backend, userAgent string, ttl time.Duration) *Resolver {
	return &Resolver{
		client:    client,
		backend:   backend,
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
		ttl:       ttl,
	}
}

// SetBaseURL points the resolver at a different Nominatim-compatible server.
func (r *Resolver) SetBaseURL(u string) { r.baseURL = u }

// Resolve returns the city/country pair for the coordinates, serving from
// cache unless force is set. Failures of any kind return Unknown.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64, force bool) Result {
	key := cache.Key("geo", coordDecimals, lat, lon)

	result, _, err := cache.GetOrCompute(ctx, r.backend, key, r.ttl, force, func(ctx context.Context) (Result, error) {
		return r.fetch(ctx, lat, lon)
	})
	if err != nil {
		log.Printf("geocode: resolve failed for %.4f,%.4f: %v", lat, lon, err)
		return Unknown
	}
	return result
}

func (r *Resolver) fetch(ctx context.Context, lat, lon float64) (Result, error) {
	values := url.Values{}
	values.Set("format", "json")
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("zoom", "10")
	values.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/reverse?"+values.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	var payload struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			County  string `json:"county"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, fmt.Errorf("unmarshal: %w", err)
	}

	result := Unknown
	// Nominatim names the settlement differently by density; take the most
	// specific label present.
	switch {
	case payload.Address.City != "":
		result.City = payload.Address.City
	case payload.Address.Town != "":
		result.City = payload.Address.Town
	case payload.Address.Village != "":
		result.City = payload.Address.Village
	case payload.Address.County != "":
		result.City = payload.Address.County
	}
	if payload.Address.Country != "" {
		result.Country = payload.Address.Country
	}
	return result, nil
}
