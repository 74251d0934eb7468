// Package webhook exposes the HTTP surface: the Strava webhook callback
// plus the connect/disconnect and subscription management endpoints.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	shared "github.com/activitrax/server/pkg"
	"github.com/activitrax/server/pkg/bootstrap"
	"github.com/activitrax/server/pkg/correlation"
	"github.com/activitrax/server/pkg/infrastructure/sentry"
	"github.com/activitrax/server/pkg/providers/spotify"
	"github.com/activitrax/server/pkg/providers/strava"
)

// Handler wires the HTTP routes to the correlator and provider clients.
type Handler struct {
	Service    *bootstrap.Service
	Correlator *correlation.Correlator
	Strava     *strava.AppClient
	Spotify    *spotify.AppClient
	Logger     *slog.Logger

	// DispatchTimeout bounds a single asynchronous correlation run.
	DispatchTimeout time.Duration

	// inflight tracks dispatched correlation runs so shutdown can wait
	// for them instead of dropping a pending write-back.
	inflight sync.WaitGroup
}

// Routes mounts all endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/strava/webhook_callback", h.VerifyWebhook)
	r.Post("/strava/webhook_callback", h.ReceiveWebhook)
	r.Post("/strava/reprocess", h.ReprocessLast)

	r.Post("/strava/exchange_token", h.ExchangeStravaToken)
	r.Post("/spotify/exchange_token", h.ExchangeSpotifyToken)
	r.Post("/strava/disconnect", h.disconnect(shared.ServiceStrava))
	r.Post("/spotify/disconnect", h.disconnect(shared.ServiceSpotify))

	r.Get("/strava/webhook_details", h.WebhookDetails)
	r.Post("/strava/webhook_create", h.WebhookCreate)
	r.Post("/strava/webhook_delete", h.WebhookDelete)
}

// Event is the Strava webhook payload.
type Event struct {
	OwnerID    int64  `json:"owner_id"`
	ObjectID   int64  `json:"object_id"`
	AspectType string `json:"aspect_type"`
	ObjectType string `json:"object_type"`
}

// VerifyWebhook answers the subscription handshake: echo the challenge only
// when the verify token matches the configured secret.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("hub.challenge")
	verifyToken := r.URL.Query().Get("hub.verify_token")

	expected := h.Service.Config.StravaVerifyToken
	if expected == "" || subtle.ConstantTimeCompare([]byte(verifyToken), []byte(expected)) != 1 {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// ReceiveWebhook acknowledges the event immediately and correlates
// asynchronously. Strava must get a fast 200 regardless of downstream
// outcome, or it will retry delivery.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}

	h.Logger.Info("Webhook received",
		"owner_id", event.OwnerID, "object_id", event.ObjectID, "aspect_type", event.AspectType)

	if event.AspectType == "create" && event.ObjectType == "activity" {
		h.dispatch(strconv.FormatInt(event.OwnerID, 10), event.ObjectID)
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

// dispatch runs the correlator on a background context so the webhook
// response does not wait on the grace interval.
func (h *Handler) dispatch(athleteID string, activityID int64) {
	timeout := h.DispatchTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := h.Correlator.ProcessActivityCreated(ctx, athleteID, activityID); err != nil {
			h.Logger.Error("Correlation failed",
				"athlete_id", athleteID, "activity_id", activityID, "error", err)
			if !errors.Is(err, correlation.ErrUserNotConnected) {
				sentry.CaptureException(err, map[string]interface{}{
					"athlete_id":  athleteID,
					"activity_id": activityID,
				})
			}
		}
	}()
}

// Drain blocks until every dispatched correlation run has finished, or the
// context expires. Called during shutdown after the HTTP server has stopped
// accepting requests.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReprocessLast re-runs correlation for the athlete's most recent activity.
func (h *Handler) ReprocessLast(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AthleteID string `json:"athlete_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AthleteID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}

	if err := h.Correlator.ReprocessLastActivity(r.Context(), body.AthleteID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, correlation.ErrUserNotConnected) {
			status = http.StatusNotFound
		}
		h.Logger.Error("Reprocess failed", "athlete_id", body.AthleteID, "error", err)
		respondJSON(w, status, map[string]string{"message": "server error"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

type exchangeRequest struct {
	UserID    string `json:"user_id"`
	AuthToken string `json:"auth_token"`
}

// ExchangeStravaToken finishes the Strava OAuth connect flow for a user.
func (h *Handler) ExchangeStravaToken(w http.ResponseWriter, r *http.Request) {
	var body exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" || body.AuthToken == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}

	exchange, err := h.Strava.ExchangeAuthCode(r.Context(), body.AuthToken)
	if err != nil {
		h.Logger.Error("Strava token exchange failed", "user_id", body.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}

	now := time.Now()
	err = h.Service.DB.UpdateUser(r.Context(), body.UserID, map[string]interface{}{
		"strava_access_token":  exchange.AccessToken,
		"strava_refresh_token": exchange.RefreshToken,
		"strava_uid":           exchange.AthleteID,
		"strava_connected_at":  now,
	})
	if err != nil {
		h.Logger.Error("Failed to persist strava connection", "user_id", body.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

// ExchangeSpotifyToken finishes the Spotify OAuth connect flow for a user.
// The profile is fetched with the fresh token so the provider uid can be
// stored alongside the pair.
func (h *Handler) ExchangeSpotifyToken(w http.ResponseWriter, r *http.Request) {
	var body exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" || body.AuthToken == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}

	tok, err := h.Spotify.ExchangeAuthCode(r.Context(), body.AuthToken)
	if err != nil {
		h.Logger.Error("Spotify token exchange failed", "user_id", body.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}

	profileClient := spotify.NewClient(spotify.StaticClient(r.Context(), tok))
	profile, err := profileClient.GetProfile(r.Context())
	if err != nil {
		h.Logger.Error("Spotify profile fetch failed", "user_id", body.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}

	now := time.Now()
	err = h.Service.DB.UpdateUser(r.Context(), body.UserID, map[string]interface{}{
		"spotify_access_token":  tok.AccessToken,
		"spotify_refresh_token": tok.RefreshToken,
		"spotify_uid":           profile.ID,
		"spotify_connected_at":  now,
	})
	if err != nil {
		h.Logger.Error("Failed to persist spotify connection", "user_id", body.UserID, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

// disconnect clears one provider's fields, leaving the record in place.
func (h *Handler) disconnect(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
			return
		}

		if err := h.Service.DB.ClearServiceFields(r.Context(), body.UserID, service); err != nil {
			h.Logger.Error("Disconnect failed", "user_id", body.UserID, "service", service, "error", err)
			respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
	}
}

// WebhookDetails lists the app's registered push subscriptions.
func (h *Handler) WebhookDetails(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Strava.ListWebhookSubscriptions(r.Context())
	if err != nil {
		h.Logger.Error("Webhook details failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"message": "success", "subscriptions": subs})
}

// WebhookCreate registers the activity webhook subscription.
func (h *Handler) WebhookCreate(w http.ResponseWriter, r *http.Request) {
	cfg := h.Service.Config
	err := h.Strava.CreateWebhookSubscription(r.Context(), cfg.StravaCallbackURL, cfg.StravaVerifyToken)
	if err != nil {
		h.Logger.Error("Webhook create failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

// WebhookDelete removes every registered push subscription.
func (h *Handler) WebhookDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Strava.DeleteWebhookSubscriptions(r.Context()); err != nil {
		h.Logger.Error("Webhook delete failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
