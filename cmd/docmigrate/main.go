// Command docmigrate copies rows from an analytical store into a document
// store as nested per-key documents, then appends an audit copy of every
// flushed document back to the analytical store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
