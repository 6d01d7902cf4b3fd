package main

import (
	"os"

	"github.com/freighter-dev/freighter/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
