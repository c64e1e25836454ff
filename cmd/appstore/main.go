package main

import (
	"os"

	"github.com/msto63/appstore/cmd/appstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
