// Command gatekeeper runs the authentication service and its maintenance tasks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
