package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage OAuth2 tokens",
	}

	cmd.AddCommand(
		newAuthURLCmd(root),
		newAuthExchangeCmd(root),
		newAuthRefreshCmd(root),
		newAuthStatusCmd(root),
		newAuthLogoutCmd(root),
	)
	return cmd
}

func newAuthURLCmd(root *rootOptions) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the authorization URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			oauth, err := a.requireOAuth()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), oauth.AuthorizationURL(scopes))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "scopes to request (default: all read scopes)")
	return cmd
}

func newAuthExchangeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			oauth, err := a.requireOAuth()
			if err != nil {
				return err
			}
			tokens, err := oauth.Exchange(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tokens stored, access token expires %s\n", tokens.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newAuthRefreshCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			oauth, err := a.requireOAuth()
			if err != nil {
				return err
			}
			if err := oauth.Refresh(cmd.Context()); err != nil {
				return err
			}
			tokens, err := oauth.Tokens(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Access token refreshed, expires %s\n", tokens.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newAuthStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored token state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if a.oauth == nil {
				fmt.Fprintln(out, "Using a static access token")
				return nil
			}

			tokens, err := a.oauth.Tokens(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			fmt.Fprintf(out, "Firm:           %s\n", valueOr(tokens.FirmUUID, "unknown"))
			fmt.Fprintf(out, "Scope:          %s\n", valueOr(tokens.Scope, "unknown"))
			fmt.Fprintf(out, "Saved:          %s\n", tokens.SavedAt.Format(time.RFC3339))
			if tokens.ExpiresAt.IsZero() {
				fmt.Fprintln(out, "Access token:   no expiry recorded")
			} else if now.Before(tokens.ExpiresAt) {
				fmt.Fprintf(out, "Access token:   valid for %s\n", tokens.ExpiresAt.Sub(now).Round(time.Second))
			} else {
				fmt.Fprintf(out, "Access token:   expired %s\n", tokens.ExpiresAt.Format(time.RFC3339))
			}
			if tokens.RefreshTokenValid(now) {
				fmt.Fprintln(out, "Refresh token:  valid")
			} else {
				fmt.Fprintln(out, "Refresh token:  expired, run \"mycase auth url\" to reauthorize")
			}
			return nil
		},
	}
}

func newAuthLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear tokens: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tokens removed")
			return nil
		},
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
