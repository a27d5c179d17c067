package main

import (
	"os"

	"github.com/lunevo/bidwire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
