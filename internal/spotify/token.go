package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is Spotify's token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// ErrReauthRequired is returned when the access token has expired and the
// refresh-token exchange failed. Callers must force a full sign-out/sign-in;
// the client never retries past the single refresh attempt.
var ErrReauthRequired = errors.New("spotify: reauthentication required")

// Refresher exchanges an expired token for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// TokenRefresher performs the refresh-token grant against the provider's
// token endpoint using HTTP Basic client-credential auth.
type TokenRefresher struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *resty.Client
}

// NewTokenRefresher creates a TokenRefresher for the given client credentials.
func NewTokenRefresher(clientID, clientSecret string) *TokenRefresher {
	return &TokenRefresher{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     DefaultTokenURL,
		http:         resty.New().SetTimeout(10 * time.Second),
	}
}

// WithTokenURL overrides the token endpoint. Used in tests.
func (r *TokenRefresher) WithTokenURL(u string) *TokenRefresher {
	r.tokenURL = u
	return r
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh exchanges the refresh token for a new access token. The returned
// token is a new value; the input is never mutated. If the response omits a
// refresh token, the previous one is retained.
func (r *TokenRefresher) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrReauthRequired)
	}

	var body tokenResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": token.RefreshToken,
		}).
		SetResult(&body).
		Post(r.tokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: refreshing token: %v", ErrReauthRequired, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrReauthRequired, resp.StatusCode())
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", ErrReauthRequired)
	}

	refreshToken := body.RefreshToken
	if refreshToken == "" {
		refreshToken = token.RefreshToken
	}

	return &oauth2.Token{
		AccessToken:  body.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
