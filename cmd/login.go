package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/listunsub/internal/google"
)

func newLoginCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize Gmail access and store the token",
		Long: `Run the Google consent flow in the browser, replacing any stored token.

Use this once on a machine with a browser before scheduling headless runs
(--auth-mode headless), which never prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			if _, err := newLogger(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}

			oauthConfig, err := google.LoadConfig(cfg.CredentialsPath, google.DefaultScopes...)
			if err != nil {
				return err
			}

			authorizer := &google.InteractiveAuthorizer{
				In:          cmd.InOrStdin(),
				Out:         cmd.ErrOrStderr(),
				OpenBrowser: google.OpenBrowser,
			}
			tok, err := authorizer.Authorize(cmd.Context(), oauthConfig)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			tokenFile := &google.TokenFile{Path: cfg.TokenPath}
			if err := tokenFile.Save(tok); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.TokenPath)
			return nil
		},
	}
}
