// tabdoc CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/Dagger77/tabdoc/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
