// Package garmin implements a client for the Garmin Connect API: SSO
// credential login (with optional MFA), OAuth1 token exchange, durable token
// persistence, and the wellness data endpoints. Payloads are returned as raw
// JSON; callers decide what to reshape.
package garmin

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBase = "https://connectapi.garmin.com"
	defaultSSOBase = "https://sso.garmin.com/sso"

	// Garmin's SSO pages and the OAuth endpoints only answer to the
	// Connect Mobile app's user agents.
	ssoUserAgent = "GCM-iOS-5.7.2.1"
	apiUserAgent = "com.garmin.android.apps.connectmobile"

	// Published consumer credentials of the Connect Mobile app. These are
	// not account secrets; every Connect client ships them.
	defaultConsumerKey    = "fc3e99d2-118c-44b8-8ae3-03370dde24c0"
	defaultConsumerSecret = "E08WAR897WEy2knn7aFBrvegVAf0AFdWBBF"

	defaultTimeout = 30 * time.Second

	// maxResponseSize caps response bodies (10 MB). Sleep detail payloads
	// run ~200KB; anything near the cap is malformed.
	maxResponseSize = 10 * 1024 * 1024
)

// MFAPrompt supplies a multi-factor code when the SSO flow asks for one.
// It is called synchronously and must block until the user answers.
type MFAPrompt func() (string, error)

// Client is a Garmin Connect API client. It is safe for concurrent use once
// authenticated; authentication itself (Login/Resume) is not concurrent-safe
// and is expected to happen once.
type Client struct {
	http           *http.Client
	apiBase        string
	ssoBase        string
	logger         *slog.Logger
	limiter        *rate.Limiter
	promptMFA      MFAPrompt
	consumerKey    string
	consumerSecret string
	now            func() time.Time
	nonce          func() string

	mu      sync.Mutex
	oauth1  *OAuth1Token
	oauth2  *oauth2.Token
	profile *SocialProfile
}

// SocialProfile is the subset of the Garmin social profile the client needs:
// the display name keys several wellness endpoint paths.
type SocialProfile struct {
	ID          int64  `json:"id"`
	ProfileID   int64  `json:"profileId"`
	DisplayName string `json:"displayName"`
	FullName    string `json:"fullName"`
	UserName    string `json:"userName"`
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Connect API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.apiBase = u }
}

// WithSSOBaseURL overrides the SSO base URL.
func WithSSOBaseURL(u string) Option {
	return func(c *Client) { c.ssoBase = u }
}

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMFAPrompt installs the callback used when SSO requires a
// multi-factor code. Without one, an MFA challenge fails the login.
func WithMFAPrompt(p MFAPrompt) Option {
	return func(c *Client) { c.promptMFA = p }
}

// WithRateLimit bounds outbound request rate. Zero disables the limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithConsumerCredentials overrides the OAuth1 consumer key pair.
func WithConsumerCredentials(key, secret string) Option {
	return func(c *Client) {
		c.consumerKey = key
		c.consumerSecret = secret
	}
}

// NewClient constructs a Client. The zero configuration talks to the real
// Garmin endpoints with a 30s timeout and a polite request rate.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{Timeout: defaultTimeout},
		apiBase:        defaultAPIBase,
		ssoBase:        defaultSSOBase,
		logger:         slog.Default(),
		limiter:        rate.NewLimiter(rate.Limit(2), 4),
		consumerKey:    defaultConsumerKey,
		consumerSecret: defaultConsumerSecret,
		now:            time.Now,
		nonce:          randomNonce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DisplayName returns the profile display name, empty until authenticated.
func (c *Client) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return ""
	}
	return c.profile.DisplayName
}

// Profile returns the cached social profile, nil until authenticated.
func (c *Client) Profile() *SocialProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// TokenExpiry returns the expiry of the held OAuth2 bearer, or the zero
// time when no bearer is loaded.
func (c *Client) TokenExpiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oauth2 == nil {
		return time.Time{}
	}
	return c.oauth2.Expiry
}

func randomNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
