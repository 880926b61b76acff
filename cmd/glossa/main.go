// Command glossa serves the correction-learning knowledge store.
package main

import (
	"os"

	"github.com/MrWong99/glossa/cmd/glossa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
