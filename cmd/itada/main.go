package main

import (
	"os"

	"github.com/metasolutions/itada-infra/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
