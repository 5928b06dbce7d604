// fatvfs serves the content of a FAT image read-only over HTTP and allows
// inspecting it from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func main() {
	app := newApp(afero.NewOsFs(), os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
