package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	csrfPattern   = regexp.MustCompile(`name="_csrf"\s+value="([^"]+)"`)
	titlePattern  = regexp.MustCompile(`<title>([^<]*)</title>`)
	ticketPattern = regexp.MustCompile(`embed\?ticket=([^"]+)"`)
)

// Login performs the full SSO credential flow: embed page for cookies,
// signin page for the CSRF token, credential POST, an MFA round when Garmin
// asks for one, then the service ticket is traded for an OAuth1 token pair
// and an OAuth2 bearer. The social profile is fetched at the end, both to
// validate the session and to learn the display name used in endpoint paths.
func (c *Client) Login(ctx context.Context, email, password string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("garmin: cookie jar: %w", err)
	}
	// The SSO dance is stateful (cookies); run it on a dedicated client so
	// the shared one stays jar-free.
	sso := &http.Client{
		Timeout:   c.http.Timeout,
		Transport: c.http.Transport,
		Jar:       jar,
	}

	embedParams := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {c.ssoBase},
	}
	if _, err := c.ssoGet(ctx, sso, c.ssoBase+"/embed?"+embedParams.Encode()); err != nil {
		return fmt.Errorf("garmin: sso embed: %w", err)
	}

	signinQuery := url.Values{
		"id":                              {"gauth-widget"},
		"embedWidget":                     {"true"},
		"gauthHost":                       {c.ssoBase + "/embed"},
		"service":                         {c.ssoBase + "/embed"},
		"source":                          {c.ssoBase + "/embed"},
		"redirectAfterAccountLoginUrl":    {c.ssoBase + "/embed"},
		"redirectAfterAccountCreationUrl": {c.ssoBase + "/embed"},
	}
	signinURL := c.ssoBase + "/signin?" + signinQuery.Encode()

	page, err := c.ssoGet(ctx, sso, signinURL)
	if err != nil {
		return fmt.Errorf("garmin: sso signin page: %w", err)
	}
	csrf, err := extractCSRF(page)
	if err != nil {
		return err
	}

	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"true"},
		"_csrf":    {csrf},
	}
	page, err = c.ssoPostForm(ctx, sso, signinURL, form, signinURL)
	if err != nil {
		return fmt.Errorf("garmin: sso credential post: %w", err)
	}

	switch title := extractTitle(page); {
	case title == "Success":
		// fall through to ticket extraction
	case strings.Contains(title, "MFA"):
		page, err = c.completeMFA(ctx, sso, signinQuery, page, signinURL)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unexpected sso response %q", ErrAuthentication, title)
	}

	ticket, err := extractTicket(page)
	if err != nil {
		return err
	}

	o1, err := c.fetchOAuth1Token(ctx, ticket)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.oauth1 = o1
	c.oauth2 = nil
	c.mu.Unlock()

	if err := c.exchange(ctx); err != nil {
		return err
	}
	return c.hydrateProfile(ctx)
}

// Resume restores a session from a token store directory: load the pair,
// re-derive the bearer if it has expired, then validate against the profile
// endpoint. Any failure means the caller should fall back to Login.
func (c *Client) Resume(ctx context.Context, dir string) error {
	if err := c.LoadTokens(dir); err != nil {
		return err
	}
	if err := c.ensureAccess(ctx); err != nil {
		return err
	}
	return c.hydrateProfile(ctx)
}

// completeMFA runs the verification round: ask the injected prompt for a
// code and post it back with the fresh CSRF token from the challenge page.
func (c *Client) completeMFA(ctx context.Context, sso *http.Client, signinQuery url.Values, challengePage, referer string) (string, error) {
	if c.promptMFA == nil {
		return "", ErrMFARequired
	}

	code, err := c.promptMFA()
	if err != nil {
		return "", fmt.Errorf("garmin: mfa prompt: %w", err)
	}

	csrf, err := extractCSRF(challengePage)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"mfa-code": {code},
		"embed":    {"true"},
		"_csrf":    {csrf},
		"fromPage": {"setupEnterMfaCode"},
	}
	mfaURL := c.ssoBase + "/verifyMFA/loginEnterMfaCode?" + signinQuery.Encode()
	page, err := c.ssoPostForm(ctx, sso, mfaURL, form, referer)
	if err != nil {
		return "", fmt.Errorf("garmin: mfa post: %w", err)
	}

	if title := extractTitle(page); title != "Success" {
		return "", fmt.Errorf("%w: mfa verification failed (%q)", ErrAuthentication, title)
	}
	return page, nil
}

// fetchOAuth1Token trades the SSO service ticket for the long-lived OAuth1
// pair. Two-legged request: signed with consumer credentials only.
func (c *Client) fetchOAuth1Token(ctx context.Context, ticket string) (*OAuth1Token, error) {
	q := url.Values{
		"ticket":             {ticket},
		"login-url":          {c.ssoBase + "/embed"},
		"accepts-mfa-tokens": {"true"},
	}
	reqURL := c.apiBase + "/oauth-service/oauth/preauthorized?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("garmin: preauthorized request: %w", err)
	}
	req.Header.Set("User-Agent", apiUserAgent)
	c.signOAuth1(req, nil, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("garmin: read preauthorized response: %w", err)
	}
	if err := mapHTTPError(resp.StatusCode, body); err != nil {
		return nil, err
	}

	// The body is a bare query string: oauth_token=…&oauth_token_secret=…
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("garmin: parse preauthorized response: %w", err)
	}
	o1 := &OAuth1Token{
		Token:    vals.Get("oauth_token"),
		Secret:   vals.Get("oauth_token_secret"),
		MFAToken: vals.Get("mfa_token"),
	}
	if o1.Token == "" || o1.Secret == "" {
		return nil, fmt.Errorf("%w: preauthorized response missing token pair", ErrAuthentication)
	}
	return o1, nil
}

// exchange derives a fresh OAuth2 bearer from the OAuth1 pair.
func (c *Client) exchange(ctx context.Context) error {
	c.mu.Lock()
	o1 := c.oauth1
	c.mu.Unlock()
	if o1 == nil {
		return ErrNoTokens
	}

	form := url.Values{}
	if o1.MFAToken != "" {
		form.Set("mfa_token", o1.MFAToken)
	}

	reqURL := c.apiBase + "/oauth-service/oauth/exchange/user/2.0"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("garmin: exchange request: %w", err)
	}
	req.Header.Set("User-Agent", apiUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.signOAuth1(req, o1, form)

	resp, err := c.http.Do(req)
	if err != nil {
		return mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("garmin: read exchange response: %w", err)
	}
	if err := mapHTTPError(resp.StatusCode, body); err != nil {
		return err
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("garmin: decode exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("%w: exchange response missing access token", ErrAuthentication)
	}

	c.mu.Lock()
	c.oauth2 = &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
		Expiry:       c.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	c.mu.Unlock()
	return nil
}

// ensureAccess guarantees a usable bearer, re-running the exchange when the
// stored one has expired. The OAuth1 pair outlives bearers by months, so
// this keeps resumed sessions working without a credential login.
func (c *Client) ensureAccess(ctx context.Context) error {
	c.mu.Lock()
	valid := c.oauth2 != nil && c.oauth2.Valid()
	hasOAuth1 := c.oauth1 != nil
	c.mu.Unlock()

	if valid {
		return nil
	}
	if !hasOAuth1 {
		return ErrNoTokens
	}
	return c.exchange(ctx)
}

func (c *Client) hydrateProfile(ctx context.Context) error {
	raw, err := c.do(ctx, http.MethodGet, "/userprofile-service/socialProfile", nil, nil)
	if err != nil {
		return err
	}
	var profile SocialProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return fmt.Errorf("garmin: decode social profile: %w", err)
	}

	c.mu.Lock()
	c.profile = &profile
	c.mu.Unlock()

	c.logger.Debug("garmin profile loaded", "display_name", profile.DisplayName)
	return nil
}

func (c *Client) ssoGet(ctx context.Context, sso *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ssoUserAgent)
	return doSSORequest(sso, req)
}

func (c *Client) ssoPostForm(ctx context.Context, sso *http.Client, rawURL string, form url.Values, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ssoUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", referer)
	return doSSORequest(sso, req)
}

func doSSORequest(sso *http.Client, req *http.Request) (string, error) {
	resp, err := sso.Do(req)
	if err != nil {
		return "", mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("garmin: read sso response: %w", err)
	}
	if err := mapHTTPError(resp.StatusCode, body); err != nil {
		return "", err
	}
	return string(body), nil
}

func extractCSRF(page string) (string, error) {
	m := csrfPattern.FindStringSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("%w: no csrf token in sso page", ErrAuthentication)
	}
	return m[1], nil
}

func extractTitle(page string) string {
	m := titlePattern.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractTicket(page string) (string, error) {
	m := ticketPattern.FindStringSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("%w: no service ticket in sso response", ErrAuthentication)
	}
	return m[1], nil
}
