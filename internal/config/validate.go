package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate checks the structural validity of a Config. It collects every
// problem rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log_level %q (supported: debug, info, warn, error)", cfg.LogLevel))
	}

	switch cfg.Server.Transport {
	case "stdio":
	case "http":
		if _, err := net.ResolveTCPAddr("tcp", cfg.Server.Addr); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid server.addr %q", cfg.Server.Addr))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown server.transport %q (supported: \"stdio\", \"http\")", cfg.Server.Transport))
	}

	if cfg.Garmin.UserProfilePK < 0 {
		errs = append(errs, errors.New("config: garmin.user_profile_pk must not be negative"))
	}
	if cfg.Garmin.RateLimit < 0 {
		errs = append(errs, errors.New("config: garmin.rate_limit must not be negative"))
	}
	if cfg.Garmin.Timeout < 0 {
		errs = append(errs, errors.New("config: garmin.timeout must not be negative"))
	}

	if err := cfg.Gateway.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
