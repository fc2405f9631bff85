package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/tokenctl/pkg/tokenctl/auth"
	"github.com/telekom/tokenctl/pkg/tokenctl/config"
	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

func NewLoginCommand() *cobra.Command {
	var (
		clientID        string
		clientSecret    string
		scopes          []string
		redirectURL     string
		noBrowser       bool
		callbackTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login <profile>",
		Short: "Sign in through the browser and cache the tokens of a profile",
		Long: `Sign in through the browser and cache the tokens of a profile.

A new profile needs a client id, a client secret and at least one scope, given
as flags or through CLIENT_ID, CLIENT_SECRET, SCOPES and REDIRECT. For an
existing profile every flag is optional and overrides the stored value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			name := args[0]
			store := rt.store()

			existing, err := store.Load(name)
			switch {
			case err == nil:
			case errors.Is(err, profile.ErrNotFound), errors.Is(err, fs.ErrNotExist):
				existing = nil
			default:
				return err
			}

			loginEnv, err := config.LoadLoginEnv()
			if err != nil {
				return err
			}
			overrides := profile.Overrides{
				ClientID:     firstNonEmpty(clientID, loginEnv.ClientID),
				ClientSecret: firstNonEmpty(clientSecret, loginEnv.ClientSecret),
				Scopes:       scopes,
				RedirectURL:  firstNonEmpty(redirectURL, loginEnv.RedirectURL),
			}
			if len(overrides.Scopes) == 0 {
				overrides.Scopes = loginEnv.Scopes
			}
			record, err := profile.Merge(existing, name, overrides)
			if err != nil {
				return err
			}

			timeout := rt.settings.EffectiveCallbackTimeout()
			if cmd.Flags().Changed("callback-timeout") {
				if callbackTimeout < 0 {
					return errors.New("--callback-timeout cannot be negative")
				}
				timeout = callbackTimeout
			}

			flow := &auth.LoginFlow{
				Store:           store,
				Connector:       rt.oidcConnector(),
				Issuer:          rt.settings.Issuer,
				Clock:           rt.clock,
				Log:             rt.Logger(),
				Out:             rt.Writer(),
				CallbackTimeout: timeout,
			}
			if !noBrowser && rt.settings.ShouldOpenBrowser() {
				flow.OpenBrowser = rt.openBrowser
			}
			if err := flow.Login(cmd.Context(), record); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in, tokens for profile %s are cached\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&clientID, "id", "i", "", "OAuth2 client id")
	cmd.Flags().StringVarP(&clientSecret, "secret", "s", "", "OAuth2 client secret")
	cmd.Flags().StringSliceVarP(&scopes, "scopes", "o", nil, "Comma separated scopes to request")
	cmd.Flags().StringVarP(&redirectURL, "redirect", "r", "", "Loopback redirect URL registered for the client")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().DurationVar(&callbackTimeout, "callback-timeout", config.DefaultCallbackTimeout, "How long to wait for the browser, 0 waits forever")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
