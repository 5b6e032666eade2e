package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// do performs one authenticated Connect API request and returns the raw
// body. The bearer is re-derived first if expired. There are no retries;
// a failed call is reported once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.ensureAccess(ctx); err != nil {
		return nil, err
	}

	reqURL := c.apiBase + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("garmin: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("garmin: create request: %w", err)
	}

	c.mu.Lock()
	bearer := ""
	if c.oauth2 != nil {
		bearer = c.oauth2.AccessToken
	}
	c.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("User-Agent", apiUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("garmin: read response: %w", err)
	}
	if err := mapHTTPError(resp.StatusCode, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ConnectAPI performs an arbitrary authenticated request against the
// Connect API. The typed wrappers below cover the known endpoints; this is
// the escape hatch for fixed-path writes.
func (c *Client) ConnectAPI(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	return c.do(ctx, method, path, query, body)
}

// profilePath builds an endpoint path that embeds the profile display name.
func (c *Client) profilePath(prefix string) (string, error) {
	name := c.DisplayName()
	if name == "" {
		return "", fmt.Errorf("%w: social profile not loaded", ErrAuthentication)
	}
	return prefix + url.PathEscape(name), nil
}

// UserSummary returns the combined daily wellness summary.
func (c *Client) UserSummary(ctx context.Context, date string) (json.RawMessage, error) {
	path, err := c.profilePath("/usersummary-service/usersummary/daily/")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, url.Values{"calendarDate": {date}}, nil)
}

// BodyBattery returns the body battery level report for one date.
func (c *Client) BodyBattery(ctx context.Context, date string) (json.RawMessage, error) {
	q := url.Values{"startDate": {date}, "endDate": {date}}
	return c.do(ctx, http.MethodGet, "/wellness-service/wellness/bodyBattery/reports/daily", q, nil)
}

// BodyBatteryEvents returns discrete body battery events (sleep, activity,
// stress spans) for one date.
func (c *Client) BodyBatteryEvents(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/wellness-service/wellness/bodyBattery/events/"+date, nil, nil)
}

// SleepData returns the full daily sleep payload, per-epoch series included.
func (c *Client) SleepData(ctx context.Context, date string) (json.RawMessage, error) {
	path, err := c.profilePath("/wellness-service/wellness/dailySleepData/")
	if err != nil {
		return nil, err
	}
	q := url.Values{"date": {date}, "nonSleepBufferMinutes": {"60"}}
	return c.do(ctx, http.MethodGet, path, q, nil)
}

// HeartRate returns the daily heart rate timeline.
func (c *Client) HeartRate(ctx context.Context, date string) (json.RawMessage, error) {
	path, err := c.profilePath("/wellness-service/wellness/dailyHeartRate/")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, url.Values{"date": {date}}, nil)
}

// RestingHeartRate returns the resting heart rate metric for one date.
func (c *Client) RestingHeartRate(ctx context.Context, date string) (json.RawMessage, error) {
	path, err := c.profilePath("/userstats-service/wellness/daily/")
	if err != nil {
		return nil, err
	}
	q := url.Values{
		"fromDate":  {date},
		"untilDate": {date},
		"metricId":  {"60"},
	}
	return c.do(ctx, http.MethodGet, path, q, nil)
}

// Stress returns the daily stress timeline.
func (c *Client) Stress(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/wellness-service/wellness/dailyStress/"+date, nil, nil)
}

// Steps returns the daily steps chart.
func (c *Client) Steps(ctx context.Context, date string) (json.RawMessage, error) {
	path, err := c.profilePath("/wellness-service/wellness/dailySummaryChart/")
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, path, url.Values{"date": {date}}, nil)
}

// Respiration returns the daily respiration measurements.
func (c *Client) Respiration(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/wellness-service/wellness/daily/respiration/"+date, nil, nil)
}

// SpO2 returns the daily pulse ox measurements.
func (c *Client) SpO2(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/wellness-service/wellness/daily/spo2/"+date, nil, nil)
}

// MenstrualDayView returns cycle tracking data for one date.
func (c *Client) MenstrualDayView(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/periodichealth-service/menstrualcycle/dayview/"+date, nil, nil)
}

// HRV returns heart rate variability data for one date.
func (c *Client) HRV(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/hrv-service/hrv/"+date, nil, nil)
}

// Hydration returns all hydration data for one date.
func (c *Client) Hydration(ctx context.Context, date string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/usersummary-service/usersummary/hydration/allData/"+date, nil, nil)
}

// AddHydration logs a water intake in milliliters, stamped with the local
// clock the way the Connect app does.
func (c *Client) AddHydration(ctx context.Context, valueML float64) (json.RawMessage, error) {
	now := c.now()
	payload := map[string]any{
		"calendarDate":   now.Format("2006-01-02"),
		"timestampLocal": now.Format("2006-01-02T15:04:05.000"),
		"valueInML":      valueML,
	}
	return c.do(ctx, http.MethodPut, "/usersummary-service/usersummary/hydration/log", nil, payload)
}

// UpdateMenstrualCycle posts a calendar update for one contiguous cycle.
// The caller owns the payload shape; Garmin rejects partial documents.
func (c *Client) UpdateMenstrualCycle(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/periodichealth-service/menstrualcycle/calendarupdates", nil, payload)
}

// Activities returns a page of the activity list, newest first.
func (c *Client) Activities(ctx context.Context, start, limit int) (json.RawMessage, error) {
	q := url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
	return c.do(ctx, http.MethodGet, "/activitylist-service/activities/search/activities", q, nil)
}
