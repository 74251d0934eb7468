package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httputil "github.com/activitrax/server/pkg/infrastructure/http"
)

func TestActivityWindow(t *testing.T) {
	start := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	activity := &Activity{StartDate: start, ElapsedTime: 1800}

	gotStart, gotEnd := activity.Window()
	assert.Equal(t, start, gotStart)
	assert.Equal(t, start.Add(30*time.Minute), gotEnd)
}

func TestGetActivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activities/42", r.URL.Path)
		fmt.Fprint(w, `{
			"id": 42,
			"name": "Morning Run",
			"type": "Run",
			"start_date": "2023-01-01T10:00:00Z",
			"elapsed_time": 1800,
			"description": "Felt good"
		}`)
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	activity, err := client.GetActivity(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), activity.ID)
	assert.Equal(t, "Morning Run", activity.Name)
	assert.Equal(t, int64(1800), activity.ElapsedTime)
	assert.Equal(t, "Felt good", activity.Description)
}

func TestGetLastActivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"id": 99, "name": "Evening Ride"}]`)
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	activity, err := client.GetLastActivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), activity.ID)
}

func TestGetLastActivityNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	_, err := client.GetLastActivity(context.Background())
	assert.ErrorIs(t, err, ErrNoActivities)
}

func TestUpdateActivityDescription(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/activities/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id": 42}`)
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	err := client.UpdateActivityDescription(context.Background(), 42, "new description")
	require.NoError(t, err)
	assert.Equal(t, "new description", gotBody["description"])
}

func TestGetActivityAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Record Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := &Client{HTTPClient: server.Client(), BaseURL: server.URL}
	_, err := client.GetActivity(context.Background(), 42)
	require.Error(t, err)

	var httpErr *httputil.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "Record Not Found")
}
