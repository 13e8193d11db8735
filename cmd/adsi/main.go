package main

import (
	"os"

	"github.com/IMJLA/go-adsi/cmd/adsi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
