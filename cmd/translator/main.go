// Command translator listens to a microphone, translates what it hears and
// speaks the translation.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
