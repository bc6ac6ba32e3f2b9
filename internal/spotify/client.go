// Package spotify provides a typed client for the Spotify Web API with
// automatic token refresh and single-retry on expired credentials.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// APIError is a non-401 error response from the Web API.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify: API error %d: %s", e.Status, e.Message)
}

type apiErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Client issues bearer-authenticated requests against the Web API.
//
// Token handling: each request reads the current token; if it has already
// expired the client refreshes before issuing. A 401 response triggers exactly
// one refresh-and-retry. Refresh failure surfaces ErrReauthRequired and no
// further requests succeed until a new token is installed. Concurrent callers
// may trigger overlapping refreshes; each swap installs a valid token, so a
// lost update costs one redundant round trip, never correctness.
type Client struct {
	http      *resty.Client
	refresher Refresher
	baseURL   string
	log       zerolog.Logger

	mu        sync.RWMutex
	token     *oauth2.Token
	onRefresh func(*oauth2.Token)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithOnRefresh registers a hook invoked with every refreshed token, letting
// the session layer persist it.
func WithOnRefresh(fn func(*oauth2.Token)) Option {
	return func(c *Client) { c.onRefresh = fn }
}

// NewClient creates a Client around an existing token.
func NewClient(token *oauth2.Token, refresher Refresher, opts ...Option) *Client {
	c := &Client{
		http:      resty.New().SetTimeout(10 * time.Second),
		refresher: refresher,
		baseURL:   DefaultBaseURL,
		log:       zerolog.Nop(),
		token:     token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current token value.
func (c *Client) Token() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) swapToken(token *oauth2.Token) {
	c.mu.Lock()
	c.token = token
	hook := c.onRefresh
	c.mu.Unlock()

	if hook != nil {
		hook(token)
	}
}

// refresh exchanges the given token and installs the result.
func (c *Client) refresh(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := c.refresher.Refresh(ctx, stale)
	if err != nil {
		return nil, err
	}
	c.swapToken(fresh)
	c.log.Debug().Time("expiry", fresh.Expiry).Msg("access token refreshed")
	return fresh, nil
}

// do issues one authenticated request, refreshing at most once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token := c.Token()
	if token == nil {
		return ErrReauthRequired
	}

	// Expired before we even start: refresh first, then a 401 on the fresh
	// token is terminal below.
	if !token.Expiry.IsZero() && time.Now().After(token.Expiry) {
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return err
		}
		token = fresh
	}

	resp, err := c.issue(ctx, method, path, query, body, out, token)
	if err != nil {
		return fmt.Errorf("spotify: %s %s: %w", method, path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return err
		}
		resp, err = c.issue(ctx, method, path, query, body, out, fresh)
		if err != nil {
			return fmt.Errorf("spotify: %s %s (retry): %w", method, path, err)
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return ErrReauthRequired
		}
	}

	if !resp.IsSuccess() {
		return apiErrorFrom(resp)
	}
	return nil
}

// issue performs a single HTTP round trip with the given token.
func (c *Client) issue(ctx context.Context, method, path string, query url.Values, body, out any, token *oauth2.Token) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token.AccessToken)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	return req.Execute(method, c.baseURL+path)
}

func apiErrorFrom(resp *resty.Response) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && envelope.Error.Message != "" {
		envelope.Error.Status = resp.StatusCode()
		return &envelope.Error
	}
	return &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}
