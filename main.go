// The main package for the html-to-image executable.
package main

import (
	"github.com/Kokosalah45/html-to-image/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
