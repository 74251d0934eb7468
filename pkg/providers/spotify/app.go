package spotify

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// AppClient performs the Spotify calls that authenticate with the
// application's client credentials: the authorization_code exchange.
type AppClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	HTTPClient   *http.Client
	TokenURL     string // overridable in tests; defaults to the Spotify endpoint
}

func NewAppClient(clientID, clientSecret, redirectURI string, httpClient *http.Client) *AppClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AppClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		HTTPClient:   httpClient,
	}
}

// ExchangeAuthCode trades an authorization code for a token pair. Spotify
// requires the redirect URI used during authorization to be repeated here.
func (c *AppClient) ExchangeAuthCode(ctx context.Context, code string) (*oauth2.Token, error) {
	endpoint := endpoints.Spotify
	if c.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: c.TokenURL, AuthStyle: oauth2.AuthStyleInHeader}
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint:     endpoint,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("spotify token exchange failed: %w", err)
	}
	return tok, nil
}

// StaticClient builds an HTTP client around a fixed token, used right after
// the auth-code exchange before anything is persisted.
func StaticClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
}
