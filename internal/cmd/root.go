// Package cmd wires zmx's cobra command tree: attach, list, detach, and
// kill, plus the hidden supervisor re-exec target.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo sets the version information reported by `zmx version`,
// populated by the linker at build time.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

var rootCmd = &cobra.Command{
	Use:   "zmx",
	Short: "Persistent terminal sessions",
	Long: `zmx keeps a shell session alive across disconnects.

It spawns a shell or command behind a pseudo-terminal owned by a small
per-session supervisor process. Disconnecting your terminal, closing an
SSH connection, or losing network does not touch the session: reattach
later and the shell picks up exactly where it left off.

Use "zmx attach <name>" to create or reattach to a session, "zmx list"
to see what's running, "zmx detach" from inside a session to leave it
running, and "zmx kill <name>" to tear one down.`,
	Version: version,
}

// Execute runs the command tree, exiting non-zero on any returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zmx: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd, attachCmd, listCmd, detachCmd, killCmd, superviseCmd, helpCmd)
}

// helpCmd replaces cobra's auto-registered help command only to add the
// "h" short alias named alongside a/d/l/k/v in SPEC_FULL.md §6.4; its
// behavior is otherwise cobra's own default.
var helpCmd = &cobra.Command{
	Use:     "help [command]",
	Aliases: []string{"h"},
	Short:   "Help about any command",
	Run: func(cmd *cobra.Command, args []string) {
		target, _, err := cmd.Root().Find(args)
		if target == nil || err != nil {
			cmd.Printf("Unknown help topic %#q\n", args)
			_ = cmd.Root().Usage()
			return
		}
		target.InitDefaultHelpFlag()
		target.InitDefaultVersionFlag()
		_ = target.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zmx version %s\n", version)
		if commit != "none" && commit != "" {
			fmt.Printf("commit: %s\n", commit)
		}
		if date != "unknown" && date != "" {
			fmt.Printf("built: %s\n", date)
		}
	},
}
