package cmd

import (
	"github.com/spf13/cobra"

	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/dispatcher"
	"github.com/neurosnap/zmx-sub000/internal/logger"
)

var detachCmd = &cobra.Command{
	Use:     "detach",
	Aliases: []string{"d"},
	Short:   "Detach from the current session ($ZMX_SESSION)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return err
		}
		log := logger.NewConsole(logger.LevelFromEnv())
		return dispatcher.Detach(log, cfg)
	},
}
