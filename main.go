// The main package for the atlas executable.
package main

import (
	"os"

	"github.com/atlas-archive/atlas/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
