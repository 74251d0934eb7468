// Package oauth manages per-provider OAuth tokens: reading the stored pair,
// exchanging refresh tokens, and transparently retrying a request once when
// an access token has gone stale.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	shared "github.com/activitrax/server/pkg"
)

// tokenEndpoints maps a provider to its OAuth token exchange URL.
var tokenEndpoints = map[string]string{
	shared.ServiceStrava:  "https://www.strava.com/oauth/token",
	shared.ServiceSpotify: "https://accounts.spotify.com/api/token",
}

// basicAuthProviders send client credentials in a Basic auth header instead
// of the form body. Strava wants them in the body.
var basicAuthProviders = map[string]bool{
	shared.ServiceSpotify: true,
}

// Token represents the OAuth token pair we care about.
type Token struct {
	AccessToken  string
	RefreshToken string
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*Token, error)
	ForceRefresh(context.Context) (*Token, error)
}

// RefreshError indicates the provider rejected a refresh token. This is
// fatal for the in-flight request and is never retried; the stored refresh
// token is left in place.
type RefreshError struct {
	Service    string
	StatusCode int
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s refresh failed with status %d", e.Service, e.StatusCode)
}

// StoreTokenSource reads the token pair from the credential store and
// refreshes it through the provider when asked.
type StoreTokenSource struct {
	db      shared.Database
	userID  string
	service string
	mu      sync.Mutex

	// httpClient and tokenURL are overridable in tests.
	httpClient *http.Client
	tokenURL   string
}

func NewStoreTokenSource(db shared.Database, userID, service string) *StoreTokenSource {
	return &StoreTokenSource{
		db:      db,
		userID:  userID,
		service: service,
	}
}

// Token returns the stored token pair without touching the provider.
// Expiry is unknown for these providers, so staleness is only discovered
// reactively via a 401 (see Transport).
func (s *StoreTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.db.GetUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokens := user.Tokens(s.service)
	if !tokens.Complete() {
		return nil, fmt.Errorf("%s not connected for user %s", s.service, s.userID)
	}

	return &Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// ForceRefresh exchanges the stored refresh token for a fresh pair,
// persists it, and returns it for immediate use. Two concurrent refreshes
// for the same identity are not coordinated across processes; the last
// writer's pair wins.
func (s *StoreTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fetch the refresh token from the store again to be safe.
	user, err := s.db.GetUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	refreshToken := user.Tokens(s.service).RefreshToken
	if refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for %s", s.service)
	}

	return s.refreshToken(ctx, refreshToken)
}

// refreshToken performs the HTTP exchange and persists the new pair.
func (s *StoreTokenSource) refreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	clientID, err := s.getSecret("client-id")
	if err != nil {
		return nil, err
	}
	clientSecret, err := s.getSecret("client-secret")
	if err != nil {
		return nil, err
	}

	tokenURL := s.tokenURL
	if tokenURL == "" {
		tokenURL = tokenEndpoints[s.service]
	}
	if tokenURL == "" {
		return nil, fmt.Errorf("unsupported provider for refresh: %s", s.service)
	}

	data := url.Values{}
	if !basicAuthProviders[s.service] {
		data.Set("client_id", clientID)
		data.Set("client_secret", clientSecret)
	}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicAuthProviders[s.service] {
		req.SetBasicAuth(clientID, clientSecret)
	}

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, &RefreshError{Service: s.service, StatusCode: resp.StatusCode}
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	updateData := map[string]interface{}{
		s.service + "_access_token": result.AccessToken,
		s.service + "_last_used_at": time.Now(),
	}
	// Only overwrite the refresh token if the provider rotated it.
	// Writing an empty response value would wipe the stored token.
	if result.RefreshToken != "" {
		updateData[s.service+"_refresh_token"] = result.RefreshToken
	}

	if err := s.db.UpdateUser(ctx, s.userID, updateData); err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}

	// Carry the original refresh token over when the provider omitted one.
	newRefreshToken := result.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &Token{
		AccessToken:  result.AccessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

func (s *StoreTokenSource) getSecret(keyType string) (string, error) {
	// Environment variables use uppercase with underscores,
	// e.g. "strava" + "client-id" becomes "STRAVA_CLIENT_ID".
	envVarName := strings.ToUpper(s.service) + "_" + strings.ToUpper(strings.ReplaceAll(keyType, "-", "_"))

	value := os.Getenv(envVarName)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not found", envVarName)
	}

	return value, nil
}
