package main

import (
	"os"

	"github.com/xab-mack/contractscan/internal/app"
)

var version = "dev"

func main() {
	if err := app.BuildRoot(version).Execute(); err != nil {
		os.Exit(1)
	}
}
