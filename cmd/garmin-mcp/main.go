// Package main is the entry point for the garmin-mcp CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/SolanceLab/garmin-mcp/internal/config"
	"github.com/SolanceLab/garmin-mcp/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Credentials may live in a local .env file. Absence is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "garmin-mcp",
		Short:         "MCP server exposing Garmin Connect health data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), serveCmd(), loginCmd(), logoutCmd(), statusCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("garmin-mcp %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func serveCmd() *cobra.Command {
	var (
		cfgPath   string
		transport string
		addr      string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server over the configured transport.

The stdio transport (the default) speaks MCP on stdin/stdout for use as a
local server of an MCP client; http serves the streamable HTTP transport
on the configured address.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				Transport:  transport,
				Addr:       addr,
				LogLevel:   logLevel,
			})
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&transport, "transport", "", `MCP transport: "stdio" or "http"`)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for the http transport")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Minimum log level: debug, info, warn or error")
	return cmd
}

// loadConfig resolves, loads, and validates the configuration for the
// auxiliary commands.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.Resolve(explicit)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
