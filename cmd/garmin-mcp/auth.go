package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

func loginCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Garmin Connect and save tokens",
		Long: `Authenticate with Garmin Connect and persist the OAuth tokens.

Credentials come from the configuration, the GARMIN_EMAIL and
GARMIN_PASSWORD environment variables, or a local .env file; anything
missing is asked for interactively. After a successful login the MCP
server starts without credentials.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			email, password := cfg.Garmin.Email, cfg.Garmin.Password
			if email == "" || password == "" {
				if err := credentialsForm(&email, &password); err != nil {
					return err
				}
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.Level(),
			}))
			client := garmin.NewClient(
				garmin.WithLogger(logger),
				garmin.WithMFAPrompt(promptMFA),
			)

			fmt.Printf("Authenticating as %s...\n", email)
			if err := client.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			if err := client.DumpTokens(cfg.Garmin.TokenStore); err != nil {
				return err
			}

			fmt.Println("\nAuthentication successful!")
			fmt.Printf("Display name: %s\n", client.DisplayName())
			fmt.Printf("Tokens saved to: %s\n", cfg.Garmin.TokenStore)
			fmt.Println("\nThe MCP server can now start using saved tokens.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func logoutCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove saved Garmin Connect tokens",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			removed, err := garmin.RemoveTokens(cfg.Garmin.TokenStore)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("No saved tokens in %s\n", cfg.Garmin.TokenStore)
				return nil
			}
			fmt.Printf("Removed saved tokens from %s\n", cfg.Garmin.TokenStore)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func statusCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report authentication state without logging in",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			fmt.Printf("Token store: %s\n", cfg.Garmin.TokenStore)

			client := garmin.NewClient()
			if err := client.LoadTokens(cfg.Garmin.TokenStore); err != nil {
				if errors.Is(err, garmin.ErrNoTokens) {
					fmt.Println("Not logged in. Run 'garmin-mcp login'.")
					return nil
				}
				return err
			}

			fmt.Println(bearerStatus(client.TokenExpiry(), time.Now()))
			if cfg.Garmin.Email != "" && cfg.Garmin.Password != "" {
				fmt.Println("Credential fallback: configured")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

// bearerStatus renders the OAuth2 expiry line for the status command. An
// expired bearer is not a logged-out state: the OAuth1 token re-derives it
// on the next use.
func bearerStatus(expiry, now time.Time) string {
	switch {
	case expiry.IsZero():
		return "Logged in (bearer expiry unknown)"
	case now.After(expiry):
		return fmt.Sprintf("Logged in (bearer expired %s, refreshed on next use)", expiry.Format(time.RFC3339))
	default:
		return fmt.Sprintf("Logged in (bearer valid until %s)", expiry.Format(time.RFC3339))
	}
}

func credentialsForm(email, password *string) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Garmin Connect email").
			Value(email).
			Validate(notEmpty("email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(notEmpty("password")),
	)).Run()
}

// promptMFA is handed to the client and called mid-login when Garmin asks
// for a one-time code.
func promptMFA() (string, error) {
	var code string
	err := huh.NewInput().
		Title("Enter MFA code").
		Description("Garmin Connect sent a one-time code to your configured MFA method.").
		Value(&code).
		Validate(notEmpty("code")).
		Run()
	return strings.TrimSpace(code), err
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " must not be empty")
		}
		return nil
	}
}
