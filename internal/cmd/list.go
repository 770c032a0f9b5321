package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/neurosnap/zmx-sub000/internal/config"
	"github.com/neurosnap/zmx-sub000/internal/dispatcher"
	"github.com/neurosnap/zmx-sub000/internal/logger"
)

var listWatch bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l", "ls"},
	Short:   "List running sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return err
		}
		log := logger.NewConsole(logger.LevelFromEnv())

		if !listWatch {
			infos, err := dispatcher.List(log, cfg)
			if err != nil {
				return err
			}
			printSessions(infos)
			return nil
		}

		stop := make(chan struct{})
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			close(stop)
		}()

		return dispatcher.Watch(log, cfg, stop, printSessions)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listWatch, "watch", false, "keep printing the session list as sessions start or stop")
}

// printSessions prints one line per live session in the format
// documented in SPEC_FULL.md §6.4: "session_name={name}
// pid={supervisor pid} clients={n}". Nothing is printed for an empty
// list — that format has no corresponding banner line.
func printSessions(infos []dispatcher.SessionInfo) {
	for _, info := range infos {
		fmt.Printf("session_name=%s pid=%d clients=%d\n", info.Name, info.Pid, info.Clients)
	}
}
