package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// overlays the GARMIN_* process environment, and fills defaults. An empty
// path yields an environment-and-defaults-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		expanded, err := expandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}

		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.defaults()

	return &cfg, nil
}

// applyEnv overlays the process environment onto the config. Environment
// values win over file values, matching how the server is usually deployed.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("GARMIN_EMAIL"); ok {
		c.Garmin.Email = v
	}
	if v, ok := os.LookupEnv("GARMIN_PASSWORD"); ok {
		c.Garmin.Password = v
	}
	if v, ok := os.LookupEnv("GARMIN_TOKEN_STORE"); ok {
		c.Garmin.TokenStore = v
	}
	if v, ok := os.LookupEnv("GARMIN_USER_PROFILE_PK"); ok {
		pk, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: GARMIN_USER_PROFILE_PK %q: %w", v, err)
		}
		c.Garmin.UserProfilePK = pk
	}
	return nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil
		defaultVal := ""
		if hasDefault {
			defaultVal = string(subs[2])
		}

		value, ok := os.LookupEnv(name)
		if ok {
			return []byte(value)
		}

		if hasDefault {
			return []byte(defaultVal)
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
