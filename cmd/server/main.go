// Package main is the entry point for the ag3dash server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := getRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
