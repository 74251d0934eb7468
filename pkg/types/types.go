// Package types holds the persisted record shapes shared across the server.
package types

import "time"

// ServiceTokens is one provider's OAuth token pair.
type ServiceTokens struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present. A partial pair is
// treated the same as not connected at all.
func (t ServiceTokens) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// UserRecord is the per-user document in the users collection. The document
// id is the internal user id; each connected provider contributes a
// {service}_access_token / {service}_refresh_token / {service}_uid triple.
type UserRecord struct {
	StravaAccessToken  string     `firestore:"strava_access_token,omitempty"`
	StravaRefreshToken string     `firestore:"strava_refresh_token,omitempty"`
	StravaUID          string     `firestore:"strava_uid,omitempty"`
	StravaConnectedAt  *time.Time `firestore:"strava_connected_at,omitempty"`
	StravaLastUsedAt   *time.Time `firestore:"strava_last_used_at,omitempty"`

	SpotifyAccessToken  string     `firestore:"spotify_access_token,omitempty"`
	SpotifyRefreshToken string     `firestore:"spotify_refresh_token,omitempty"`
	SpotifyUID          string     `firestore:"spotify_uid,omitempty"`
	SpotifyConnectedAt  *time.Time `firestore:"spotify_connected_at,omitempty"`
	SpotifyLastUsedAt   *time.Time `firestore:"spotify_last_used_at,omitempty"`

	// LastStravaActivity caches the most recently correlated activity
	// payload, including its tracklist.
	LastStravaActivity map[string]interface{} `firestore:"last_strava_activity,omitempty"`
}

// Tokens returns the token pair for a service. Unknown services read as an
// empty (incomplete) pair.
func (u *UserRecord) Tokens(service string) ServiceTokens {
	switch service {
	case "strava":
		return ServiceTokens{AccessToken: u.StravaAccessToken, RefreshToken: u.StravaRefreshToken}
	case "spotify":
		return ServiceTokens{AccessToken: u.SpotifyAccessToken, RefreshToken: u.SpotifyRefreshToken}
	}
	return ServiceTokens{}
}

// ExternalID returns the provider-assigned user id for a service.
func (u *UserRecord) ExternalID(service string) string {
	switch service {
	case "strava":
		return u.StravaUID
	case "spotify":
		return u.SpotifyUID
	}
	return ""
}

// Connected reports whether the service has a complete token pair stored.
func (u *UserRecord) Connected(service string) bool {
	return u.Tokens(service).Complete()
}
