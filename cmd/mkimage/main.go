// mkimage packs a directory into a FAT16 image, e.g. to create an image for fatvfs serve.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aligator/fatvfs/internal/fatimage"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "mkimage",
		Usage:     "create a FAT16 image from a directory",
		ArgsUsage: "SRC_DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "image `FILE` to create",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "volume label, at most 11 characters",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one SRC_DIR")
			}
			return build(afero.NewOsFs(), c.Args().First(), c.String("out"), c.String("label"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// build writes all files and directories below src into a new image at out.
// The image is removed again if anything fails.
func build(fsys afero.Fs, src, out, label string) (err error) {
	image, err := fsys.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := image.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = fsys.Remove(out)
		}
	}()

	fw := fatimage.NewWriter(image)
	if err := fw.SetLabel(label); err != nil {
		return err
	}

	err = afero.Walk(fsys, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." || filepath.Clean(path) == filepath.Clean(out) {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			return fw.Mkdir(rel, info.ModTime())
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s: only regular files and directories are supported", path)
		}

		w, err := fw.File(rel, info.ModTime())
		if err != nil {
			return err
		}

		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}

	return fw.Flush()
}
