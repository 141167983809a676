// main holds the entry logic for the scorefuse CLI.
package main

import (
	"github.com/scorefuse/scorefuse/cmd"
	"github.com/scorefuse/scorefuse/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Command failed", err)
	}
}
