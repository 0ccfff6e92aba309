package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
