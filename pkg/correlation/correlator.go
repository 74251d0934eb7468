// Package correlation matches a finished activity to the tracks played
// during it and writes the tracklist into the activity description.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	shared "github.com/activitrax/server/pkg"
	"github.com/activitrax/server/pkg/bootstrap"
	"github.com/activitrax/server/pkg/infrastructure/oauth"
	infrapubsub "github.com/activitrax/server/pkg/infrastructure/pubsub"
	"github.com/activitrax/server/pkg/providers/spotify"
	"github.com/activitrax/server/pkg/providers/strava"
	"github.com/activitrax/server/pkg/tracklist"
)

// ErrUserNotConnected means no user record owns the athlete id, or the
// record is missing a complete token pair for either provider. Fatal for
// the run; never retried.
var ErrUserNotConnected = errors.New("user not connected")

// StravaAPI is the slice of the Strava client the correlator needs.
type StravaAPI interface {
	GetActivity(ctx context.Context, activityID int64) (*strava.Activity, error)
	GetLastActivity(ctx context.Context) (*strava.Activity, error)
	UpdateActivityDescription(ctx context.Context, activityID int64, description string) error
}

// SpotifyAPI is the slice of the Spotify client the correlator needs.
type SpotifyAPI interface {
	RecentlyPlayed(ctx context.Context, windowStart, windowEnd time.Time) ([]spotify.Track, error)
}

// Correlator runs the activity/listening-history pipeline. Runs for the
// same activity are serialized through a singleflight group, so a
// duplicate webhook delivery collapses into one run instead of racing a
// read-modify-write on the description.
type Correlator struct {
	svc    *bootstrap.Service
	logger *slog.Logger
	grace  time.Duration
	group  singleflight.Group

	// Client constructors, replaceable in tests.
	newStrava  func(userID string) StravaAPI
	newSpotify func(userID string) SpotifyAPI
}

func New(svc *bootstrap.Service) *Correlator {
	c := &Correlator{
		svc:    svc,
		logger: slog.Default().With("component", "correlator"),
		grace:  svc.Config.GraceInterval,
	}
	c.newStrava = func(userID string) StravaAPI {
		source := oauth.NewStoreTokenSource(svc.DB, userID, shared.ServiceStrava)
		return strava.NewClient(oauth.NewHTTPClient(source, svc.DB, userID, shared.ServiceStrava, svc.Config.HTTPTimeout))
	}
	c.newSpotify = func(userID string) SpotifyAPI {
		source := oauth.NewStoreTokenSource(svc.DB, userID, shared.ServiceSpotify)
		return spotify.NewClient(oauth.NewHTTPClient(source, svc.DB, userID, shared.ServiceSpotify, svc.Config.HTTPTimeout))
	}
	return c
}

// ProcessActivityCreated correlates one newly created activity, identified
// by the Strava athlete id from the webhook payload.
func (c *Correlator) ProcessActivityCreated(ctx context.Context, athleteID string, activityID int64) error {
	key := fmt.Sprintf("%s:%d", shared.ServiceStrava, activityID)
	_, err, _ := c.group.Do(key, func() (interface{}, error) {
		return nil, c.run(ctx, athleteID, activityID)
	})
	return err
}

// ReprocessLastActivity re-runs the pipeline for the athlete's most recent
// activity. The generated section is replaced, not appended twice.
func (c *Correlator) ReprocessLastActivity(ctx context.Context, athleteID string) error {
	userID, err := c.resolve(ctx, athleteID)
	if err != nil {
		return err
	}

	activity, err := c.newStrava(userID).GetLastActivity(ctx)
	if err != nil {
		return fmt.Errorf("activity fetch failed: %w", err)
	}

	return c.ProcessActivityCreated(ctx, athleteID, activity.ID)
}

// resolve maps an athlete id onto a user record and checks both providers
// are fully connected.
func (c *Correlator) resolve(ctx context.Context, athleteID string) (string, error) {
	userID, user, err := c.svc.DB.GetUserByService(ctx, shared.ServiceStrava, athleteID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", fmt.Errorf("%w: no record for strava athlete %s", ErrUserNotConnected, athleteID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}

	for _, service := range shared.Services {
		if !user.Connected(service) {
			return "", fmt.Errorf("%w: %s tokens incomplete for user %s", ErrUserNotConnected, service, userID)
		}
	}

	return userID, nil
}

func (c *Correlator) run(ctx context.Context, athleteID string, activityID int64) error {
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "athlete_id", athleteID, "activity_id", activityID)

	// 1. Resolve
	userID, err := c.resolve(ctx, athleteID)
	if err != nil {
		return err
	}
	logger = logger.With("user_id", userID)

	stravaClient := c.newStrava(userID)
	spotifyClient := c.newSpotify(userID)

	// 2. Fetch activity
	activity, err := stravaClient.GetActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("activity fetch failed: %w", err)
	}

	// 3. Compute window
	windowStart, windowEnd := activity.Window()

	// 4. Fetch tracks
	tracks, err := spotifyClient.RecentlyPlayed(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("track fetch failed: %w", err)
	}
	if len(tracks) == 0 {
		logger.Info("No tracks played during activity window")
		return nil
	}

	// 5. Format
	block := tracklist.FormatBlock(tracks)

	// 6. Cache the correlated activity on the user record. Not rolled back
	// if the write below fails.
	if err := c.svc.DB.SetLastActivity(ctx, userID, activityPayload(activity, tracks)); err != nil {
		logger.Warn("Failed to cache last activity", "error", err)
	}

	// Strava may still be writing activity fields when the webhook fires;
	// wait before the re-fetch so the merge sees the settled description.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.grace):
	}

	// 7. Re-fetch, merge, write back
	fresh, err := stravaClient.GetActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("activity re-fetch failed: %w", err)
	}

	merged := tracklist.Merge(fresh.Description, block)
	if err := stravaClient.UpdateActivityDescription(ctx, activityID, merged); err != nil {
		return fmt.Errorf("description write failed: %w", err)
	}

	logger.Info("Correlation complete", "track_count", len(tracks))

	c.publishCorrelated(ctx, logger, userID, activityID, len(tracks), runID)
	return nil
}

// publishCorrelated emits a best-effort completion event.
func (c *Correlator) publishCorrelated(ctx context.Context, logger *slog.Logger, userID string, activityID int64, trackCount int, runID string) {
	evt, err := infrapubsub.NewCloudEvent("correlator", infrapubsub.EventTypeActivityCorrelated, map[string]interface{}{
		"user_id":     userID,
		"activity_id": activityID,
		"track_count": trackCount,
		"run_id":      runID,
	})
	if err != nil {
		logger.Warn("Failed to build correlated event", "error", err)
		return
	}
	if _, err := c.svc.Pub.PublishCloudEvent(ctx, shared.TopicActivityCorrelated, evt); err != nil {
		logger.Warn("Failed to publish correlated event", "error", err)
	}
}

// activityPayload is the shape cached under last_strava_activity.
func activityPayload(activity *strava.Activity, tracks []spotify.Track) map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, map[string]interface{}{
			"name":      t.Name,
			"artist":    t.Artist,
			"album":     t.Album,
			"duration":  t.DurationMS,
			"played_at": t.PlayedAt,
		})
	}

	return map[string]interface{}{
		"id":            activity.ID,
		"name":          activity.Name,
		"type":          activity.Type,
		"start_date":    activity.StartDate,
		"elapsed_time":  activity.ElapsedTime,
		"distance":      activity.Distance,
		"average_speed": activity.AverageSpeed,
		"calories":      activity.Calories,
		"track_count":   len(tracks),
		"tracklist":     entries,
	}
}
