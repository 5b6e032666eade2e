package garmin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const (
	testSigninPage = `<html><head><title>GARMIN Authentication</title></head>
<body><form><input type="hidden" name="_csrf" value="csrf-signin"/></form></body></html>`

	testSuccessPage = `<html><head><title>Success</title></head>
<body><script>var response_url = "https://sso.garmin.com/sso/embed?ticket=ST-TEST";</script></body></html>`

	testMFAPage = `<html><head><title>MFA Required</title></head>
<body><form><input type="hidden" name="_csrf" value="csrf-mfa"/></form></body></html>`
)

// fakeSSO emulates the Garmin SSO and OAuth endpoints.
type fakeSSO struct {
	t          *testing.T
	requireMFA bool

	mu            sync.Mutex
	loginPosts    int
	mfaPosts      int
	exchangeCalls int
	profileCalls  int
	lastMFACode   string
}

func (f *fakeSSO) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /sso/embed", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /sso/signin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testSigninPage))
	})

	mux.HandleFunc("POST /sso/signin", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.loginPosts++
		f.mu.Unlock()

		if r.FormValue("_csrf") != "csrf-signin" {
			f.t.Errorf("signin post csrf = %q", r.FormValue("_csrf"))
		}
		if r.FormValue("password") != "hunter2" {
			_, _ = w.Write([]byte(testSigninPage))
			return
		}
		if f.requireMFA {
			_, _ = w.Write([]byte(testMFAPage))
			return
		}
		_, _ = w.Write([]byte(testSuccessPage))
	})

	mux.HandleFunc("POST /sso/verifyMFA/loginEnterMfaCode", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.mfaPosts++
		f.lastMFACode = r.FormValue("mfa-code")
		f.mu.Unlock()

		if r.FormValue("_csrf") != "csrf-mfa" {
			f.t.Errorf("mfa post csrf = %q", r.FormValue("_csrf"))
		}
		_, _ = w.Write([]byte(testSuccessPage))
	})

	mux.HandleFunc("GET /oauth-service/oauth/preauthorized", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ticket"); got != "ST-TEST" {
			f.t.Errorf("preauthorized ticket = %q", got)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "OAuth ") {
			f.t.Errorf("preauthorized Authorization = %q, want OAuth", auth)
		}
		_, _ = w.Write([]byte("oauth_token=o1-tok&oauth_token_secret=o1-sec"))
	})

	mux.HandleFunc("POST /oauth-service/oauth/exchange/user/2.0", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.exchangeCalls++
		f.mu.Unlock()

		if auth := r.Header.Get("Authorization"); !strings.Contains(auth, `oauth_token="o1-tok"`) {
			f.t.Errorf("exchange Authorization = %q, want signed with oauth1 token", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"bearer-1","token_type":"Bearer","refresh_token":"r-1","expires_in":3600}`))
	})

	mux.HandleFunc("GET /userprofile-service/socialProfile", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.profileCalls++
		f.mu.Unlock()

		if got := r.Header.Get("Authorization"); got != "Bearer bearer-1" {
			f.t.Errorf("profile Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"profileId":42,"displayName":"test-user","fullName":"Test User"}`))
	})

	return httptest.NewServer(mux)
}

func newSSOClient(srv *httptest.Server, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithSSOBaseURL(srv.URL + "/sso"),
		WithRateLimit(0, 0),
	}
	return NewClient(append(base, opts...)...)
}

func TestLoginSuccess(t *testing.T) {
	fake := &fakeSSO{t: t}
	srv := fake.server()
	defer srv.Close()

	c := newSSOClient(srv)
	if err := c.Login(context.Background(), "anne@example.com", "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if got := c.DisplayName(); got != "test-user" {
		t.Errorf("DisplayName = %q, want test-user", got)
	}
	if fake.loginPosts != 1 {
		t.Errorf("login posts = %d, want 1", fake.loginPosts)
	}
	if fake.exchangeCalls != 1 {
		t.Errorf("exchange calls = %d, want 1", fake.exchangeCalls)
	}
	if c.oauth1 == nil || c.oauth1.Token != "o1-tok" {
		t.Errorf("oauth1 = %+v", c.oauth1)
	}
	if c.oauth2 == nil || c.oauth2.AccessToken != "bearer-1" {
		t.Errorf("oauth2 = %+v", c.oauth2)
	}

	dir := t.TempDir()
	if err := c.DumpTokens(dir); err != nil {
		t.Fatalf("DumpTokens after login: %v", err)
	}
}

func TestLoginWithMFA(t *testing.T) {
	fake := &fakeSSO{t: t, requireMFA: true}
	srv := fake.server()
	defer srv.Close()

	c := newSSOClient(srv, WithMFAPrompt(func() (string, error) {
		return "123456", nil
	}))
	if err := c.Login(context.Background(), "anne@example.com", "hunter2"); err != nil {
		t.Fatalf("Login with MFA: %v", err)
	}

	if fake.mfaPosts != 1 {
		t.Errorf("mfa posts = %d, want 1", fake.mfaPosts)
	}
	if fake.lastMFACode != "123456" {
		t.Errorf("mfa code = %q, want 123456", fake.lastMFACode)
	}
}

func TestLoginMFAWithoutPrompt(t *testing.T) {
	fake := &fakeSSO{t: t, requireMFA: true}
	srv := fake.server()
	defer srv.Close()

	c := newSSOClient(srv)
	err := c.Login(context.Background(), "anne@example.com", "hunter2")
	if !errors.Is(err, ErrMFARequired) {
		t.Errorf("Login = %v, want ErrMFARequired", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	fake := &fakeSSO{t: t}
	srv := fake.server()
	defer srv.Close()

	c := newSSOClient(srv)
	err := c.Login(context.Background(), "anne@example.com", "wrong")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Login with bad password = %v, want ErrAuthentication", err)
	}
}

func TestResumeWithValidTokens(t *testing.T) {
	fake := &fakeSSO{t: t}
	srv := fake.server()
	defer srv.Close()

	dir := t.TempDir()
	seed := NewClient()
	seed.oauth1 = &OAuth1Token{Token: "o1-tok", Secret: "o1-sec"}
	seed.oauth2 = &oauth2.Token{AccessToken: "bearer-1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := seed.DumpTokens(dir); err != nil {
		t.Fatalf("seed DumpTokens: %v", err)
	}

	c := newSSOClient(srv)
	if err := c.Resume(context.Background(), dir); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if fake.exchangeCalls != 0 {
		t.Errorf("exchange calls = %d, want 0 for a valid bearer", fake.exchangeCalls)
	}
	if fake.profileCalls != 1 {
		t.Errorf("profile calls = %d, want 1", fake.profileCalls)
	}
	if got := c.DisplayName(); got != "test-user" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestResumeRefreshesExpiredBearer(t *testing.T) {
	fake := &fakeSSO{t: t}
	srv := fake.server()
	defer srv.Close()

	dir := t.TempDir()
	seed := NewClient()
	seed.oauth1 = &OAuth1Token{Token: "o1-tok", Secret: "o1-sec"}
	seed.oauth2 = &oauth2.Token{AccessToken: "stale", TokenType: "Bearer", Expiry: time.Now().Add(-time.Hour)}
	if err := seed.DumpTokens(dir); err != nil {
		t.Fatalf("seed DumpTokens: %v", err)
	}

	c := newSSOClient(srv)
	if err := c.Resume(context.Background(), dir); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if fake.exchangeCalls != 1 {
		t.Errorf("exchange calls = %d, want 1 for an expired bearer", fake.exchangeCalls)
	}
	if c.oauth2.AccessToken != "bearer-1" {
		t.Errorf("bearer after refresh = %q, want bearer-1", c.oauth2.AccessToken)
	}
}

func TestResumeMissingStore(t *testing.T) {
	c := NewClient(WithRateLimit(0, 0))
	err := c.Resume(context.Background(), t.TempDir()+"/absent")
	if !errors.Is(err, ErrNoTokens) {
		t.Errorf("Resume = %v, want ErrNoTokens", err)
	}
}
