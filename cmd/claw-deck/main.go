package main

import (
	"os"

	"github.com/openclaw/claw-deck/cmd/claw-deck/commands"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(commands.Execute(Version))
}
