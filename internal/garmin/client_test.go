package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// newAuthedClient returns a client pre-seeded with tokens and a profile,
// pointed at srv, skipping the SSO dance.
func newAuthedClient(srv *httptest.Server) *Client {
	c := NewClient(
		WithBaseURL(srv.URL),
		WithSSOBaseURL(srv.URL+"/sso"),
		WithRateLimit(0, 0),
	)
	c.oauth1 = &OAuth1Token{Token: "t", Secret: "s"}
	c.oauth2 = &oauth2.Token{AccessToken: "bearer", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	c.profile = &SocialProfile{DisplayName: "test-user", ProfileID: 42}
	return c
}

func TestEndpointRouting(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		call      func(c *Client) (json.RawMessage, error)
		wantPath  string
		wantQuery map[string]string
	}{
		{
			name:      "user summary",
			call:      func(c *Client) (json.RawMessage, error) { return c.UserSummary(ctx, "2024-01-15") },
			wantPath:  "/usersummary-service/usersummary/daily/test-user",
			wantQuery: map[string]string{"calendarDate": "2024-01-15"},
		},
		{
			name:      "body battery",
			call:      func(c *Client) (json.RawMessage, error) { return c.BodyBattery(ctx, "2024-01-15") },
			wantPath:  "/wellness-service/wellness/bodyBattery/reports/daily",
			wantQuery: map[string]string{"startDate": "2024-01-15", "endDate": "2024-01-15"},
		},
		{
			name:     "body battery events",
			call:     func(c *Client) (json.RawMessage, error) { return c.BodyBatteryEvents(ctx, "2024-01-15") },
			wantPath: "/wellness-service/wellness/bodyBattery/events/2024-01-15",
		},
		{
			name:      "sleep",
			call:      func(c *Client) (json.RawMessage, error) { return c.SleepData(ctx, "2024-01-15") },
			wantPath:  "/wellness-service/wellness/dailySleepData/test-user",
			wantQuery: map[string]string{"date": "2024-01-15", "nonSleepBufferMinutes": "60"},
		},
		{
			name:      "heart rate",
			call:      func(c *Client) (json.RawMessage, error) { return c.HeartRate(ctx, "2024-01-15") },
			wantPath:  "/wellness-service/wellness/dailyHeartRate/test-user",
			wantQuery: map[string]string{"date": "2024-01-15"},
		},
		{
			name:      "resting heart rate",
			call:      func(c *Client) (json.RawMessage, error) { return c.RestingHeartRate(ctx, "2024-01-15") },
			wantPath:  "/userstats-service/wellness/daily/test-user",
			wantQuery: map[string]string{"fromDate": "2024-01-15", "untilDate": "2024-01-15", "metricId": "60"},
		},
		{
			name:     "stress",
			call:     func(c *Client) (json.RawMessage, error) { return c.Stress(ctx, "2024-01-15") },
			wantPath: "/wellness-service/wellness/dailyStress/2024-01-15",
		},
		{
			name:      "steps",
			call:      func(c *Client) (json.RawMessage, error) { return c.Steps(ctx, "2024-01-15") },
			wantPath:  "/wellness-service/wellness/dailySummaryChart/test-user",
			wantQuery: map[string]string{"date": "2024-01-15"},
		},
		{
			name:     "respiration",
			call:     func(c *Client) (json.RawMessage, error) { return c.Respiration(ctx, "2024-01-15") },
			wantPath: "/wellness-service/wellness/daily/respiration/2024-01-15",
		},
		{
			name:     "spo2",
			call:     func(c *Client) (json.RawMessage, error) { return c.SpO2(ctx, "2024-01-15") },
			wantPath: "/wellness-service/wellness/daily/spo2/2024-01-15",
		},
		{
			name:     "menstrual day view",
			call:     func(c *Client) (json.RawMessage, error) { return c.MenstrualDayView(ctx, "2024-01-15") },
			wantPath: "/periodichealth-service/menstrualcycle/dayview/2024-01-15",
		},
		{
			name:     "hrv",
			call:     func(c *Client) (json.RawMessage, error) { return c.HRV(ctx, "2024-01-15") },
			wantPath: "/hrv-service/hrv/2024-01-15",
		},
		{
			name:     "hydration",
			call:     func(c *Client) (json.RawMessage, error) { return c.Hydration(ctx, "2024-01-15") },
			wantPath: "/usersummary-service/usersummary/hydration/allData/2024-01-15",
		},
		{
			name:      "activities",
			call:      func(c *Client) (json.RawMessage, error) { return c.Activities(ctx, 0, 5) },
			wantPath:  "/activitylist-service/activities/search/activities",
			wantQuery: map[string]string{"start": "0", "limit": "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotQuery map[string]string

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = map[string]string{}
				for k := range r.URL.Query() {
					gotQuery[k] = r.URL.Query().Get(k)
				}
				if auth := r.Header.Get("Authorization"); auth != "Bearer bearer" {
					t.Errorf("Authorization = %q", auth)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			c := newAuthedClient(srv)
			raw, err := tt.call(c)
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if string(raw) != `{"ok":true}` {
				t.Errorf("raw = %s", raw)
			}

			if gotPath != tt.wantPath {
				t.Errorf("path = %q, want %q", gotPath, tt.wantPath)
			}
			for k, want := range tt.wantQuery {
				if gotQuery[k] != want {
					t.Errorf("query[%s] = %q, want %q", k, gotQuery[k], want)
				}
			}
		})
	}
}

func TestAddHydrationPayload(t *testing.T) {
	var gotMethod string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newAuthedClient(srv)
	c.now = func() time.Time {
		return time.Date(2024, 3, 10, 14, 30, 45, 120e6, time.Local)
	}

	if _, err := c.AddHydration(context.Background(), 250); err != nil {
		t.Fatalf("AddHydration: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if got := gotPayload["calendarDate"]; got != "2024-03-10" {
		t.Errorf("calendarDate = %v", got)
	}
	if got := gotPayload["timestampLocal"]; got != "2024-03-10T14:30:45.120" {
		t.Errorf("timestampLocal = %v", got)
	}
	if got := gotPayload["valueInML"]; got != float64(250) {
		t.Errorf("valueInML = %v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthentication},
		{"forbidden", http.StatusForbidden, ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, ErrTooManyRequests},
		{"server error", http.StatusInternalServerError, ErrConnection},
		{"bad gateway", http.StatusBadGateway, ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := newAuthedClient(srv)
			_, err := c.Stress(context.Background(), "2024-01-15")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if IsRemote(err) != true {
				t.Errorf("IsRemote(%v) = false, want true", err)
			}
		})
	}
}

func TestConnectionRefusedMapsToErrConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse everything from here on

	c := newAuthedClient(srv)
	_, err := c.Stress(context.Background(), "2024-01-15")
	if !errors.Is(err, ErrConnection) {
		t.Errorf("error = %v, want ErrConnection", err)
	}
}

func TestContextCancellationPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newAuthedClient(srv)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Stress(ctx, "2024-01-15")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if errors.Is(err, ErrConnection) {
		t.Errorf("context timeout classified as ErrConnection: %v", err)
	}
}

func TestProfilePathRequiresProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newAuthedClient(srv)
	c.profile = nil

	_, err := c.UserSummary(context.Background(), "2024-01-15")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("UserSummary without profile = %v, want ErrAuthentication", err)
	}
}
