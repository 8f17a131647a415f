// Package source defines the contract every external news provider
// adapter implements, and the error taxonomy the orchestrator uses to
// decide fallback. Adapters never retry internally: any failure resolves
// to a typed error at the adapter boundary and the caller moves on.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

// Source is one external news provider. Fetch normalizes the provider's
// response into canonical records; records missing a title or url are
// dropped before returning.
type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, category string, limit int) ([]domain.Record, error)
}

// Kind classifies why a fetch failed.
type Kind string

const (
	// KindUnavailable covers timeouts, transport errors and 5xx responses.
	KindUnavailable Kind = "unavailable"
	// KindAuth is a rejected credential (401/403).
	KindAuth Kind = "auth"
	// KindRateLimited is a provider-side 429.
	KindRateLimited Kind = "rate_limited"
	// KindDecode is a 2xx response whose body could not be parsed.
	KindDecode Kind = "decode"
)

// Error is the tagged failure outcome of one adapter call. All kinds are
// treated identically by the fallback chain; the kind exists for logs and
// the status endpoint.
type Error struct {
	Source string
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Source, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func classify(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	default:
		return KindUnavailable
	}
}

const userAgent = "HaberselBot/1.0"

// GetJSON performs one GET and decodes a JSON body into v. Every failure
// mode maps to a *Error; callers never see a raw transport error.
func GetJSON(ctx context.Context, client *http.Client, sourceID, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Source: sourceID, Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Source: sourceID, Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Source: sourceID, Kind: classify(resp.StatusCode), Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &Error{Source: sourceID, Kind: KindDecode, Err: err}
	}
	return nil
}
