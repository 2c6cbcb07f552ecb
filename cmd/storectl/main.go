package main

import (
	"fmt"
	"os"

	"github.com/EladReuveny/electronics-store-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "storectl:", err)
		os.Exit(1)
	}
}
