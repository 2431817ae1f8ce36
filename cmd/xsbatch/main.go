// Command xsbatch normalizes and classifies cross-section files without the
// editor window.
package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("xsbatch: %v", err)
		os.Exit(1)
	}
}
