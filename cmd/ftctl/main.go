package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRoot(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
