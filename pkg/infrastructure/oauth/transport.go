package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	shared "github.com/activitrax/server/pkg"
)

// Transport is an http.RoundTripper that authenticates all requests using
// the provided TokenSource. On a 401 it forces exactly one token refresh
// and retries exactly once; the second response is returned as-is so the
// caller sees the upstream status. This bounds the recovery to a single
// refresh-and-retry cycle per call.
type Transport struct {
	// Source supplies the token to be used.
	Source TokenSource

	// Base is the base RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: cannot get token: %w", err)
	}

	req2 := cloneRequest(req)
	req2.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	// Reactive retry: a 401 means the access token went stale.
	if resp.StatusCode == http.StatusUnauthorized {
		// Drain body to allow connection reuse
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.Warn("Got 401 Unauthorized, attempting force refresh", "url", req.URL.String())

		token, err = t.Source.ForceRefresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth: force refresh failed: %w", err)
		}

		req2.Header.Set("Authorization", "Bearer "+token.AccessToken)

		// Single retry; a second 401 surfaces to the caller.
		return base.RoundTrip(req2)
	}

	return resp, nil
}

// cloneRequest returns a clone of the provided *http.Request.
// The clone is a shallow copy of the struct and its Header map.
func cloneRequest(r *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}

// UsageTrackingTransport wraps a RoundTripper and updates the user's
// {service}_last_used_at timestamp on successful requests.
type UsageTrackingTransport struct {
	Base    http.RoundTripper
	DB      shared.Database
	UserID  string
	Service string
}

func (t *UsageTrackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)

	if err == nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			updateErr := t.DB.UpdateUser(ctx, t.UserID, map[string]interface{}{
				t.Service + "_last_used_at": time.Now(),
			})
			if updateErr != nil {
				slog.Warn("Failed to track usage", "service", t.Service, "user_id", t.UserID, "error", updateErr)
			}
		}()
	}

	return resp, err
}

// NewHTTPClient creates an HTTP client that handles OAuth and tracks usage
// in the credential store. timeout bounds every outbound call.
func NewHTTPClient(source TokenSource, db shared.Database, userID, service string, timeout time.Duration) *http.Client {
	// Stack: Client -> UsageTracking -> OAuth -> Network
	oauthTransport := &Transport{Source: source}

	usageTransport := &UsageTrackingTransport{
		Base:    oauthTransport,
		DB:      db,
		UserID:  userID,
		Service: service,
	}

	return &http.Client{
		Transport: usageTransport,
		Timeout:   timeout,
	}
}
