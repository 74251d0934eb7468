// Package strava is the Strava API client. Client calls run on behalf of a
// connected user through an OAuth HTTP client; AppClient calls authenticate
// with the application's own credentials.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	httputil "github.com/activitrax/server/pkg/infrastructure/http"
)

const DefaultBaseURL = "https://www.strava.com/api/v3"

// Activity is one completed workout as Strava reports it. Only Description
// is ever written back; everything else is read-only pass-through.
type Activity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	StartDate      time.Time `json:"start_date"`
	StartDateLocal string    `json:"start_date_local"`
	ElapsedTime    int64     `json:"elapsed_time"` // seconds
	Distance       float64   `json:"distance"`
	AverageSpeed   float64   `json:"average_speed"`
	Calories       float64   `json:"calories"`
	Description    string    `json:"description"`
}

// Window is the interval the activity spans: start_date through
// start_date + elapsed_time.
func (a *Activity) Window() (start, end time.Time) {
	start = a.StartDate
	end = start.Add(time.Duration(a.ElapsedTime) * time.Second)
	return start, end
}

// Athlete is the Strava user profile.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Client calls the Strava API as a connected user. The HTTP client is
// expected to carry OAuth authentication (and is injectable for tests).
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(httpClient *http.Client) *Client {
	return &Client{HTTPClient: httpClient, BaseURL: DefaultBaseURL}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava api request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetActivity fetches one activity with full detail.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	var activity Activity
	if err := c.get(ctx, fmt.Sprintf("/activities/%d", activityID), &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetLastActivity returns the athlete's most recent activity, or
// ErrNoActivities when the athlete has none.
func (c *Client) GetLastActivity(ctx context.Context) (*Activity, error) {
	var activities []Activity
	if err := c.get(ctx, "/athlete/activities?page=1&per_page=1", &activities); err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, ErrNoActivities
	}
	return &activities[0], nil
}

// GetAthlete fetches the authenticated athlete's profile.
func (c *Client) GetAthlete(ctx context.Context) (*Athlete, error) {
	var athlete Athlete
	if err := c.get(ctx, "/athlete", &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// UpdateActivityDescription writes a new description to an activity. This
// is the only mutation the server performs against Strava.
func (c *Client) UpdateActivityDescription(ctx context.Context, activityID int64, description string) error {
	payload, err := json.Marshal(map[string]string{"description": description})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT",
		fmt.Sprintf("%s/activities/%d", c.BaseURL, activityID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava api request failed: %w", err)
	}
	defer resp.Body.Close()

	return httputil.ParseErrorResponse(resp)
}

// ErrNoActivities is returned when an athlete has no recorded activities.
var ErrNoActivities = fmt.Errorf("athlete has no activities")
