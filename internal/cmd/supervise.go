package cmd

import (
	"github.com/spf13/cobra"

	"github.com/neurosnap/zmx-sub000/internal/dispatcher"
	"github.com/neurosnap/zmx-sub000/internal/session"
)

// superviseCmd is never invoked directly by a user; EnsureSession
// re-execs the zmx binary with this hidden subcommand to become a
// session's supervisor process, detached from the dispatcher's
// controlling terminal.
var superviseCmd = &cobra.Command{
	Use:    dispatcher.SupervisorSubcommand + " <name> [command...]",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session.Spawn(args[0], args[1:])
	},
}
