package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/activitrax/server/pkg"
	"github.com/activitrax/server/pkg/testing/mocks"
	"github.com/activitrax/server/pkg/types"
)

func TestTokenReadsStoredPair(t *testing.T) {
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{
				StravaAccessToken:  "access-1",
				StravaRefreshToken: "refresh-1",
			}, nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceStrava)
	token, err := source.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
}

func TestTokenIncompletePair(t *testing.T) {
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{StravaAccessToken: "access-1"}, nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceStrava)
	_, err := source.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestTokenUserNotFound(t *testing.T) {
	source := NewStoreTokenSource(&mocks.MockDatabase{}, "missing", shared.ServiceStrava)
	_, err := source.Token(context.Background())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestForceRefreshPersistsRotatedPair(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "client-id")
	t.Setenv("STRAVA_CLIENT_SECRET", "client-secret")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		// Strava sends client credentials in the body, not Basic auth.
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		fmt.Fprint(w, `{"access_token":"access-2","refresh_token":"refresh-2"}`)
	}))
	defer server.Close()

	var persisted map[string]interface{}
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{
				StravaAccessToken:  "access-1",
				StravaRefreshToken: "refresh-1",
			}, nil
		},
		UpdateUserFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			persisted = data
			return nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceStrava)
	source.httpClient = server.Client()
	source.tokenURL = server.URL

	token, err := source.ForceRefresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-2", token.RefreshToken)
	assert.Equal(t, "access-2", persisted["strava_access_token"])
	assert.Equal(t, "refresh-2", persisted["strava_refresh_token"])
}

func TestForceRefreshCarriesOverRefreshToken(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "client-secret")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Spotify sends client credentials as Basic auth.
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		// Spotify typically omits refresh_token from the refresh response.
		fmt.Fprint(w, `{"access_token":"access-2"}`)
	}))
	defer server.Close()

	var persisted map[string]interface{}
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{
				SpotifyAccessToken:  "access-1",
				SpotifyRefreshToken: "refresh-1",
			}, nil
		},
		UpdateUserFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			persisted = data
			return nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceSpotify)
	source.httpClient = server.Client()
	source.tokenURL = server.URL

	token, err := source.ForceRefresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken, "original refresh token is carried over")

	_, wroteRefresh := persisted["spotify_refresh_token"]
	assert.False(t, wroteRefresh, "stored refresh token must not be overwritten with empty")
	assert.Equal(t, "access-2", persisted["spotify_access_token"])
}

func TestForceRefreshRejected(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "client-id")
	t.Setenv("STRAVA_CLIENT_SECRET", "client-secret")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad Request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	updateCalled := false
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{
				StravaAccessToken:  "access-1",
				StravaRefreshToken: "revoked",
			}, nil
		},
		UpdateUserFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			updateCalled = true
			return nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceStrava)
	source.httpClient = server.Client()
	source.tokenURL = server.URL

	_, err := source.ForceRefresh(context.Background())
	require.Error(t, err)

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusBadRequest, refreshErr.StatusCode)
	assert.False(t, updateCalled, "rejected refresh must leave the store untouched")
}

func TestForceRefreshMissingRefreshToken(t *testing.T) {
	db := &mocks.MockDatabase{
		GetUserFunc: func(ctx context.Context, id string) (*types.UserRecord, error) {
			return &types.UserRecord{StravaAccessToken: "access-1"}, nil
		},
	}

	source := NewStoreTokenSource(db, "user-1", shared.ServiceStrava)
	_, err := source.ForceRefresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing refresh token")
}
