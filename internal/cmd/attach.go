package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurosnap/zmx-sub000/internal/attach"
	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/dispatcher"
	"github.com/neurosnap/zmx-sub000/internal/logger"
	"github.com/neurosnap/zmx-sub000/internal/transport"
)

var attachCmd = &cobra.Command{
	Use:     "attach <name> [-- command...]",
	Aliases: []string{"a"},
	Short:   "Create or reattach to a named session",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		command := args[1:]

		cfg, err := config.Resolve()
		if err != nil {
			return err
		}

		log := logger.NewConsole(logger.LevelFromEnv())
		sockPath, err := dispatcher.EnsureSession(log, cfg, name, command)
		if err != nil {
			return err
		}

		conn, err := transport.Dial(sockPath)
		if err != nil {
			return err
		}

		client := attach.New(conn)
		fmt.Printf("zmx: attached to %q\n", name)
		return client.Run()
	},
}
