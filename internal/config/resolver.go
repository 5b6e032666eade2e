package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolve returns the configuration file to use. An explicit path wins and
// must exist. Otherwise the standard locations are searched:
// $XDG_CONFIG_HOME/garmin-mcp/garmin-mcp.yaml (or ~/.config/...), then
// ./garmin-mcp.yaml. Finding nothing returns an empty path, not an error:
// environment variables and defaults carry a minimal stdio deployment.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %s: %w", explicit, err)
		}
		return explicit, nil
	}

	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "garmin-mcp", "garmin-mcp.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "garmin-mcp", "garmin-mcp.yaml"))
	}
	candidates = append(candidates, "garmin-mcp.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}
