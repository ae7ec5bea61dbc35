package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision <username>",
	Short: "Admit a platform user and generate their signing keys",
	Long: `provision looks the user up on the platform, stores them and generates
their key pair, then prints the actor URI. Running it again for the same
user changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		username := args[0]
		u, err := a.accounts.EnsureUser(ctx, username)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("platform has no user %q", username)
		}
		if _, err := a.accounts.EnsureKeyPair(ctx, username); err != nil {
			return err
		}

		followers, err := a.followers.Count(ctx, username)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (platform id %s, %d followers)\n",
			a.urls.ActorURI(u.Username), u.PlatformUserID, followers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
