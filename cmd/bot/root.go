package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand creates the tripbot command. Run without a subcommand it
// serves interactions, the same as "tripbot serve".
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripbot",
		Short: "Discord bot for planning shared trips",
		Long: `Discord bot for planning shared trips.

Each trip lives in a thread under the plans channel, with its details and
spending kept in a pinned message that the bot edits in place.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newRegisterCommand())

	return cmd
}
