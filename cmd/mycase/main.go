// Command mycase is a CLI and proxy for the MyCase API.
package main

import (
	"fmt"
	"os"
)

// Version information set via ldflags during build.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
