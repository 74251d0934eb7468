// Package spotify is the Spotify Web API client. Its main job here is the
// listening-history window query backing activity correlation.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	httputil "github.com/activitrax/server/pkg/infrastructure/http"
)

const DefaultBaseURL = "https://api.spotify.com/v1"

// Track is one listening-history entry. Immutable once fetched.
type Track struct {
	Name       string    `json:"name"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	DurationMS int64     `json:"duration"`
	PlayedAt   time.Time `json:"played_at"`
}

// Profile is the Spotify user profile.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Client calls the Spotify API as a connected user. The HTTP client is
// expected to carry OAuth authentication (and is injectable for tests).
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(httpClient *http.Client) *Client {
	return &Client{HTTPClient: httpClient, BaseURL: DefaultBaseURL}
}

// RecentlyPlayed returns the tracks played within [windowStart, windowEnd],
// oldest first. The API only supports an "after" cursor, so the upper bound
// is enforced client-side; a track played exactly at windowEnd is kept.
// An empty window yields an empty slice, not an error.
func (c *Client) RecentlyPlayed(ctx context.Context, windowStart, windowEnd time.Time) ([]Track, error) {
	url := fmt.Sprintf("%s/me/player/recently-played?limit=50&after=%d",
		c.BaseURL, windowStart.UnixMilli())

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify api request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}

	var recentlyPlayed struct {
		Items []struct {
			Track struct {
				Name    string `json:"name"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Name string `json:"name"`
				} `json:"album"`
				DurationMS int64 `json:"duration_ms"`
			} `json:"track"`
			PlayedAt time.Time `json:"played_at"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&recentlyPlayed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	tracks := make([]Track, 0, len(recentlyPlayed.Items))
	for _, item := range recentlyPlayed.Items {
		if item.PlayedAt.After(windowEnd) {
			continue
		}

		track := Track{
			Name:       item.Track.Name,
			Album:      item.Track.Album.Name,
			DurationMS: item.Track.DurationMS,
			PlayedAt:   item.PlayedAt,
		}
		if len(item.Track.Artists) > 0 {
			track.Artist = item.Track.Artists[0].Name
		}
		tracks = append(tracks, track)
	}

	// Downstream formatting assumes chronological order; the API does not
	// guarantee one.
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].PlayedAt.Before(tracks[j].PlayedAt)
	})

	return tracks, nil
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify api request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &profile, nil
}
