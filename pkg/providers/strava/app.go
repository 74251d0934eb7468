package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	httputil "github.com/activitrax/server/pkg/infrastructure/http"
)

// AppClient performs the Strava calls that authenticate with the
// application's client credentials rather than a user token: the
// authorization_code exchange and webhook subscription management.
type AppClient struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	BaseURL      string
	TokenURL     string // overridable in tests; defaults to the Strava endpoint
}

func NewAppClient(clientID, clientSecret string, httpClient *http.Client) *AppClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AppClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   httpClient,
		BaseURL:      DefaultBaseURL,
	}
}

// TokenExchange is the outcome of an authorization_code grant: the token
// pair plus the athlete id Strava includes in the response.
type TokenExchange struct {
	AccessToken  string
	RefreshToken string
	AthleteID    string
}

// ExchangeAuthCode trades an authorization code for a token pair.
func (c *AppClient) ExchangeAuthCode(ctx context.Context, code string) (*TokenExchange, error) {
	endpoint := endpoints.Strava
	if c.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: c.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("strava token exchange failed: %w", err)
	}

	result := &TokenExchange{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	// Strava embeds the athlete profile in the token response.
	if athlete, ok := tok.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			result.AthleteID = strconv.FormatInt(int64(id), 10)
		}
	}
	if result.AthleteID == "" {
		return nil, fmt.Errorf("strava token response missing athlete id")
	}

	return result, nil
}

// WebhookSubscription is one push subscription registered for the app.
type WebhookSubscription struct {
	ID          int64  `json:"id"`
	CallbackURL string `json:"callback_url"`
}

func (c *AppClient) credentials() url.Values {
	v := url.Values{}
	v.Set("client_id", c.ClientID)
	v.Set("client_secret", c.ClientSecret)
	return v
}

// ListWebhookSubscriptions returns the app's registered push subscriptions.
func (c *AppClient) ListWebhookSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.BaseURL+"/push_subscriptions?"+c.credentials().Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava api request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}

	var subs []WebhookSubscription
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return subs, nil
}

// CreateWebhookSubscription registers the activity webhook. Strava will
// immediately call back with the challenge handshake, so the callback URL
// must already be serving.
func (c *AppClient) CreateWebhookSubscription(ctx context.Context, callbackURL, verifyToken string) error {
	params := c.credentials()
	params.Set("callback_url", callbackURL)
	params.Set("verify_token", verifyToken)

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.BaseURL+"/push_subscriptions?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava api request failed: %w", err)
	}
	defer resp.Body.Close()

	return httputil.ParseErrorResponse(resp)
}

// DeleteWebhookSubscriptions removes every registered push subscription.
func (c *AppClient) DeleteWebhookSubscriptions(ctx context.Context) error {
	subs, err := c.ListWebhookSubscriptions(ctx)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		params := c.credentials()
		params.Set("id", strconv.FormatInt(sub.ID, 10))

		req, err := http.NewRequestWithContext(ctx, "DELETE",
			fmt.Sprintf("%s/push_subscriptions/%d?%s", c.BaseURL, sub.ID, params.Encode()), nil)
		if err != nil {
			return err
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("strava api request failed: %w", err)
		}
		parseErr := httputil.ParseErrorResponse(resp)
		resp.Body.Close()
		if parseErr != nil {
			return parseErr
		}
	}
	return nil
}
