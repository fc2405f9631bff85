package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/tokenctl/pkg/system"
	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

func NewAccessTokenCommand() *cobra.Command {
	return newTokenCommand("accesstoken", profile.KindAccess, "Print a valid access token, refreshing it when expired")
}

func NewIDTokenCommand() *cobra.Command {
	return newTokenCommand("idtoken", profile.KindID, "Print a valid ID token, refreshing it when expired")
}

// newTokenCommand prints only the token on stdout so the output can be used
// in command substitution.
func newTokenCommand(use string, kind profile.Kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <profile>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			token, err := rt.tokenManager().EnsureValid(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}
			rt.Logger().Debugw("Serving token", append(system.ProfileFields(args[0], kind.String()), "exp", token.Exp)...)
			_, err = fmt.Fprintln(rt.Writer(), token.Secret)
			return err
		},
	}
}
