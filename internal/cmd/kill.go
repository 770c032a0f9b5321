package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/dispatcher"
	"github.com/neurosnap/zmx-sub000/internal/logger"
)

var killCmd = &cobra.Command{
	Use:     "kill <name>",
	Aliases: []string{"k"},
	Short:   "Terminate a session and its child process",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return err
		}
		log := logger.NewConsole(logger.LevelFromEnv())
		if err := dispatcher.Kill(log, cfg, args[0]); err != nil {
			return err
		}
		fmt.Printf("zmx: killed %q\n", args[0])
		return nil
	},
}
