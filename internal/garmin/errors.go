package garmin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for Garmin Connect operations. Handlers classify failures
// with errors.Is against these.
var (
	// ErrAuthentication indicates Garmin rejected the request's credentials
	// or tokens (HTTP 401/403, or a failed SSO login).
	ErrAuthentication = errors.New("garmin authentication failed")

	// ErrTooManyRequests indicates Garmin throttled the request (HTTP 429).
	ErrTooManyRequests = errors.New("garmin rate limited")

	// ErrConnection indicates Garmin is unreachable or answered with a
	// server-side failure (network error or HTTP 5xx).
	ErrConnection = errors.New("garmin connection failed")

	// ErrNoTokens is returned when the token store does not contain a
	// usable token pair.
	ErrNoTokens = errors.New("no saved tokens")

	// ErrMFARequired is returned when the SSO flow asks for a multi-factor
	// code and no prompt callback is configured.
	ErrMFARequired = errors.New("mfa code required but no prompt configured")
)

// IsRemote reports whether the error is one the remote API classified
// explicitly, as opposed to a local failure.
func IsRemote(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrTooManyRequests) ||
		errors.Is(err, ErrConnection)
}

// mapHTTPError maps an HTTP status code and response body to a sentinel
// error. Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "(empty body)"
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: HTTP 429: %s", ErrTooManyRequests, msg)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: HTTP %d: %s", ErrAuthentication, statusCode, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnection, statusCode, msg)
	default:
		return fmt.Errorf("garmin: HTTP %d: %s", statusCode, msg)
	}
}

// mapConnectionError maps network-level errors to sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return fmt.Errorf("garmin: %w", err)
}
