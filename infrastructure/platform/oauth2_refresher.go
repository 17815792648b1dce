package platform

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// XEndpoint is the X (Twitter) OAuth 2.0 token endpoint.
var XEndpoint = oauth2.Endpoint{
	AuthURL:   "https://x.com/i/oauth2/authorize",
	TokenURL:  "https://api.x.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// OAuth2Refresher exchanges a refresh token through a standard OAuth 2.0 token endpoint.
type OAuth2Refresher struct {
	config *oauth2.Config
	client *http.Client
}

func NewOAuth2Refresher(config *oauth2.Config, client *http.Client) *OAuth2Refresher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &OAuth2Refresher{config: config, client: client}
}

// NewYouTubeRefresher refreshes Google credentials.
func NewYouTubeRefresher(clientID, clientSecret string, client *http.Client) *OAuth2Refresher {
	return NewOAuth2Refresher(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}, client)
}

// NewXRefresher refreshes X credentials. tokenURL overrides the production endpoint when set.
func NewXRefresher(clientID, clientSecret, tokenURL string, client *http.Client) *OAuth2Refresher {
	ep := XEndpoint
	if tokenURL != "" {
		ep.TokenURL = tokenURL
	}
	return NewOAuth2Refresher(&oauth2.Config{ClientID: clientID, ClientSecret: clientSecret, Endpoint: ep}, client)
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	// an empty access token is never valid, so the source always hits the token endpoint
	return r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}
