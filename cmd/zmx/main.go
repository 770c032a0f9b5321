// Command zmx keeps shell sessions alive across disconnects.
package main

import (
	"github.com/neurosnap/zmx-sub000/internal/cmd"
)

// version, commit, and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
