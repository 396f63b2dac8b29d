package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/notearc/nbq/pkg/auth"
	"github.com/notearc/nbq/pkg/browser"
)

const loginURL = "https://notebooklm.google.com"

func newAuthCmd(app *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage saved browser credentials",
	}
	authCmd.AddCommand(
		newAuthSetupCmd(app),
		newAuthStatusCmd(app),
		newAuthValidateCmd(app),
		newAuthClearCmd(app),
	)
	return authCmd
}

func newAuthSetupCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Sign in interactively and save the session",
		Long:  "Opens a visible browser window. Sign in by hand, then come back and press Enter; the authenticated session is saved for headless use.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Opening a browser window. Sign in, then press Enter here.")

			state, err := browser.CaptureLogin(cmd.Context(), app.driver, loginURL, func() error {
				reader := bufio.NewReader(cmd.InOrStdin())
				_, err := reader.ReadString('\n')
				return err
			})
			if err != nil {
				return fmt.Errorf("capture login: %w", err)
			}

			creds := &auth.Credentials{State: state}
			if creds.CookieCount() == 0 {
				return errors.New("no cookies captured; the sign-in did not complete")
			}
			if err := app.creds.Save(creds); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved session with %d cookies.\n", creds.CookieCount())
			if app.cfg.EncryptionKey == "" {
				color.New(color.Faint).Fprintln(cmd.OutOrStdout(), "Tip: set NBQ_ENCRYPTION_KEY to encrypt the credential file at rest.")
			}
			return nil
		},
	}
}

func newAuthStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved credential age and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := app.creds.Load()
			if err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved credentials. Run 'nbq auth setup'.")
					return nil
				}
				return err
			}

			age, err := app.creds.Age()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Credentials: %s\n", app.creds.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "Cookies:     %d\n", creds.CookieCount())
			fmt.Fprintf(cmd.OutOrStdout(), "Age:         %s\n", age.Round(time.Minute))
			if app.creds.Stale() {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "Saved more than a week ago; run 'nbq auth validate' to confirm they still work.")
			}
			return nil
		},
	}
}

func newAuthValidateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the saved credentials against the live site",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.creds.Load(); err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					return errors.New("no saved credentials: run 'nbq auth setup' first")
				}
				return err
			}

			session := browser.NewSession(app.driver, app.creds, loginURL, app.cfg.Headless)
			defer session.Close()

			if session.ValidateAuth(cmd.Context()) {
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Credentials are valid.")
				return nil
			}
			color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), "Credentials no longer work. Run 'nbq auth setup' to sign in again.")
			return errors.New("validation failed")
		},
	}
}

func newAuthClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed.")
			return nil
		},
	}
}
