package main

import (
	"os"

	"github.com/malbeclabs/routeman/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
