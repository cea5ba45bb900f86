// Command personad-send talks to a running personad instance over HTTP.
//
// Usage:
//
//	./personad-send send "&Luna what is the weather like?"
//	./personad-send replies --persona Luna --output json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error
		// Exit with non-zero status
		os.Exit(1)
	}
}
