// primal-bridge exposes accounts of a closed content platform as
// ActivityPub actors.
//
// It reads configuration from the environment (and an optional .env
// file), opens the SQLite store, and serves actor, outbox, inbox and
// discovery endpoints. Posts are pulled from the platform on demand, only
// for users that have remote followers.
//
// Usage:
//
//	primal-bridge                      # same as "serve"
//	primal-bridge serve --env prod.env
//	primal-bridge provision alice      # create alice and her keys
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "primal-bridge",
	Short: "ActivityPub bridge for platform accounts",
	Long: `primal-bridge publishes platform users as ActivityPub actors. Remote
servers can follow them, and their posts are mirrored into each actor's
outbox while at least one follower exists.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env when present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
