package main

import (
	"os"

	"github.com/qntx/sumx/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
