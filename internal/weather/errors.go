package weather

import (
	"errors"
	"fmt"

	"github.com/yorgis/weatherproxy/internal/geocode"
)

// ErrInvalidParams marks requests whose coordinates are missing or
// unparseable. It is rejected at the coordinator boundary and never retried.
var ErrInvalidParams = errors.New("invalid request parameters")

// FetchKind classifies a provider fetch failure so the fallback policy can
// log and report it accurately.
type FetchKind string

const (
	// FetchRateLimited marks an upstream 429; stale-serve is preferred over
	// hammering the provider further.
	FetchRateLimited FetchKind = "rate_limited"
	// FetchUnavailable covers network failures, timeouts and non-2xx
	// statuses that are not rate limits.
	FetchUnavailable FetchKind = "unavailable"
	// FetchMalformed marks an un-parseable or schema-mismatched body. This
	// is a correctness bug on someone's side, not a transient condition.
	FetchMalformed FetchKind = "malformed"
)

// FetchError is the typed failure every provider adapter surfaces.
type FetchError struct {
	Provider string
	Kind     FetchKind
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with its provider and failure classification.
func NewFetchError(provider string, kind FetchKind, err error) *FetchError {
	return &FetchError{Provider: provider, Kind: kind, Err: err}
}

// KindOf extracts the fetch classification from an error chain, defaulting
// to unavailable for anything untyped.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FetchUnavailable
}

// ServiceError is the coordinator's terminal failure: no fresh fetch and no
// cached entry to fall back on. It carries the best-effort geocode result so
// an error response can still name the place it failed for.
type ServiceError struct {
	Message  string
	Location *geocode.Result
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }
