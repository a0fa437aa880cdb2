// Package api implements the QQ bot open platform HTTP API: app access
// token acquisition and refresh, gateway discovery and message sending.
package api

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/aojiaoxiaolinlin/bot-go/internal/moreatomic"
	"github.com/aojiaoxiaolinlin/bot-go/utils/httputil"
)

var (
	// BaseEndpoint is the production API host.
	BaseEndpoint = "https://api.sgroup.qq.com"
	// AuthEndpoint issues app access tokens.
	AuthEndpoint = "https://bots.qq.com/app/getAppAccessToken"
)

// refreshMargin is how long before expiry a token is treated as stale.
const refreshMargin = time.Minute

// Token is one issued access token with its validity window.
type Token struct {
	Value      string
	AcquiredAt time.Time
	ExpiresIn  Seconds
}

// Stale reports whether the token is within refreshMargin of expiring.
func (t *Token) Stale() bool {
	if t == nil || t.Value == "" {
		return true
	}
	return time.Now().After(t.AcquiredAt.Add(t.ExpiresIn.Duration() - refreshMargin))
}

// Client talks to the open platform API. It is safe for concurrent use; the
// access token refreshes itself transparently before each call once it nears
// expiry.
type Client struct {
	*httputil.Client

	// Base is the API host; override for testing.
	Base string
	// Auth is the token endpoint; override for testing.
	Auth string

	appID  string
	secret string

	token   *atomic.Pointer[Token]
	refresh *moreatomic.CtxMutex
}

func NewClient(appID, secret string) *Client {
	return &Client{
		Client:  httputil.NewClient(),
		Base:    BaseEndpoint,
		Auth:    AuthEndpoint,
		appID:   appID,
		secret:  secret,
		token:   atomic.NewPointer[Token](nil),
		refresh: moreatomic.NewCtxMutex(),
	}
}

// Authenticate exchanges the app credentials for a fresh access token and
// installs it. Callers normally never need this; ensureToken does it lazily.
func (c *Client) Authenticate(ctx context.Context) error {
	var resp struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   Seconds `json:"expires_in"`
	}

	err := c.RequestJSON(ctx, &resp, "POST", c.Auth,
		httputil.WithJSONBody(map[string]string{
			"appId":        c.appID,
			"clientSecret": c.secret,
		}),
	)
	if err != nil {
		return AuthError{err}
	}

	c.token.Store(&Token{
		Value:      resp.AccessToken,
		AcquiredAt: time.Now(),
		ExpiresIn:  resp.ExpiresIn,
	})

	return nil
}

// Token returns the current token, which may be nil or stale.
func (c *Client) Token() *Token {
	return c.token.Load()
}

// AccessToken returns the current raw token value, or "" if none is held.
func (c *Client) AccessToken() string {
	if t := c.token.Load(); t != nil {
		return t.Value
	}
	return ""
}

// ensureToken returns a valid token value, refreshing first if the held one
// is stale. Concurrent refreshes collapse into one.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if t := c.token.Load(); !t.Stale() {
		return t.Value, nil
	}

	if err := c.refresh.Lock(ctx); err != nil {
		return "", err
	}
	defer c.refresh.Unlock()

	// Someone may have refreshed while we waited for the lock.
	if t := c.token.Load(); !t.Stale() {
		return t.Value, nil
	}

	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}

	return c.token.Load().Value, nil
}

// GatewayURL asks the API for the websocket gateway address.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", GatewayURLError{err}
	}

	var resp struct {
		URL string `json:"url"`
	}

	err = c.RequestJSON(ctx, &resp, "GET", c.Base+"/gateway",
		httputil.WithAuthorization("QQBot "+token),
	)
	if err != nil {
		return "", GatewayURLError{err}
	}

	return resp.URL, nil
}
