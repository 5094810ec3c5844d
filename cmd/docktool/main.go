// Package main provides the entry point for the docktool build-cache cleaner.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
