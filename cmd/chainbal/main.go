package main

import (
	"fmt"
	"os"

	"chainbal/cmd/chainbal/commands"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	root := commands.NewRootCommand(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
