package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aligator/fatvfs"
	"github.com/aligator/fatvfs/backend"
	"github.com/aligator/fatvfs/internal/config"
	"github.com/aligator/fatvfs/internal/httpserve"
	"github.com/aligator/fatvfs/internal/logging"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// env holds everything the commands share. It is filled by the Before hook of the app.
type env struct {
	fsys afero.Fs
	out  io.Writer

	cfg config.Config
	log *zap.Logger
}

func newApp(fsys afero.Fs, out io.Writer) *cli.App {
	e := &env{
		fsys: fsys,
		out:  out,
	}

	return &cli.App{
		Name:  "fatvfs",
		Usage: "Serve a FAT12, FAT16 or FAT32 image read-only",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration `FILE`",
				EnvVars: []string{"FATVFS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "FAT image or block device to use",
				EnvVars: []string{"FATVFS_IMAGE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"FATVFS_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json",
				EnvVars: []string{"FATVFS_LOG_FORMAT"},
			},
			&cli.BoolFlag{
				Name:    "skip-checks",
				Usage:   "accept boot sectors which are not fully valid",
				EnvVars: []string{"FATVFS_SKIP_CHECKS"},
			},
		},
		Before: e.setup,
		After: func(*cli.Context) error {
			if e.log != nil {
				// Syncing stderr fails on some platforms, which is not worth reporting.
				_ = e.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the image over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "`ADDRESS` to listen on",
						EnvVars: []string{"FATVFS_LISTEN"},
					},
				},
				Action: e.serve,
			},
			{
				Name:      "ls",
				Usage:     "list a directory",
				ArgsUsage: "[PATH]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "recursive",
						Aliases: []string{"r"},
						Usage:   "list all entries below PATH",
					},
				},
				Action: e.ls,
			},
			{
				Name:      "stat",
				Usage:     "show the metadata of an entry",
				ArgsUsage: "PATH",
				Action:    e.stat,
			},
			{
				Name:      "cat",
				Usage:     "print the content of a file",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "offset",
						Usage: "start at byte `N`",
					},
				},
				Action: e.cat,
			},
			{
				Name:      "cd",
				Usage:     "check if PATH is a directory and print its normalized form",
				ArgsUsage: "PATH",
				Action:    e.cd,
			},
			{
				Name:   "info",
				Usage:  "show the geometry of the image",
				Action: e.info,
			},
		},
	}
}

// setup loads the configuration file and applies the global flags on top of it.
func (e *env) setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(e.fsys, path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if c.IsSet("image") {
		cfg.Image = c.String("image")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("skip-checks") {
		cfg.SkipChecks = c.Bool("skip-checks")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.log = log
	return nil
}

func (e *env) backend() (*backend.Vfs, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	return backend.New(backend.OpenImage(e.fsys, e.cfg.Image, e.cfg.SkipChecks), e.log), nil
}

func pathArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one PATH", c.Command.Name)
	}
	return c.Args().First(), nil
}

func (e *env) serve(c *cli.Context) error {
	if c.IsSet("listen") {
		e.cfg.Listen = c.String("listen")
	}

	vfs, err := e.backend()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.log.Info("starting", zap.String("image", e.cfg.Image), zap.String("listen", e.cfg.Listen))
	return httpserve.New(vfs, e.log).ListenAndServe(ctx, e.cfg.Listen)
}

func formatModified(meta backend.Meta) string {
	modified, err := meta.Modified()
	if err != nil {
		return "-"
	}
	return modified.Format(time.RFC3339)
}

func kind(meta backend.Meta) string {
	if meta.IsDir() {
		return "d"
	}
	return "f"
}

func (e *env) ls(c *cli.Context) error {
	p := "/"
	if c.NArg() > 0 {
		p = c.Args().First()
	}

	vfs, err := e.backend()
	if err != nil {
		return err
	}

	if c.Bool("recursive") {
		return e.walk(c.Context, vfs, p)
	}

	list, err := vfs.List(c.Context, backend.AnonymousUser{}, p)
	if err != nil {
		return err
	}

	for _, info := range list {
		fmt.Fprintf(e.out, "%s %10d %-20s %s\n", kind(info.Metadata), info.Metadata.Len(), formatModified(info.Metadata), info.Path)
	}
	return nil
}

// walk prints the paths of all entries below p.
func (e *env) walk(ctx context.Context, vfs *backend.Vfs, p string) error {
	fsys := afero.NewIOFS(backend.NewReadOnlyFs(ctx, vfs, backend.AnonymousUser{}))

	root := strings.TrimPrefix(backend.Normalize(p), "/")
	if root == "" {
		root = "."
	}

	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		if d.IsDir() {
			path += "/"
		}
		fmt.Fprintln(e.out, path)
		return nil
	})
}

func (e *env) stat(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}

	vfs, err := e.backend()
	if err != nil {
		return err
	}

	meta, err := vfs.Metadata(c.Context, backend.AnonymousUser{}, p)
	if err != nil {
		return err
	}

	fileType := "file"
	perm := meta.Permissions()
	if meta.IsDir() {
		fileType = "directory"
		perm |= os.ModeDir
	}

	fmt.Fprintf(e.out, "path: %s\n", backend.Normalize(p))
	fmt.Fprintf(e.out, "type: %s\n", fileType)
	fmt.Fprintf(e.out, "size: %d\n", meta.Len())
	fmt.Fprintf(e.out, "modified: %s\n", formatModified(meta))
	fmt.Fprintf(e.out, "permissions: %s\n", perm)
	return nil
}

func (e *env) cat(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}

	vfs, err := e.backend()
	if err != nil {
		return err
	}

	content, err := vfs.Get(c.Context, backend.AnonymousUser{}, p, c.Uint64("offset"))
	if err != nil {
		return err
	}

	_, err = io.Copy(e.out, content)
	return err
}

func (e *env) cd(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}

	vfs, err := e.backend()
	if err != nil {
		return err
	}

	if err := vfs.Cwd(c.Context, backend.AnonymousUser{}, p); err != nil {
		return err
	}

	fmt.Fprintln(e.out, backend.Normalize(p))
	return nil
}

func (e *env) info(*cli.Context) error {
	if e.cfg.Image == "" {
		return errors.New("no image configured")
	}

	file, err := e.fsys.Open(e.cfg.Image)
	if err != nil {
		return err
	}
	defer file.Close()

	var fat *fatvfs.Fs
	if e.cfg.SkipChecks {
		fat, err = fatvfs.NewSkipChecks(file)
	} else {
		fat, err = fatvfs.New(file)
	}
	if err != nil {
		return err
	}

	info := fat.Info()
	fmt.Fprintf(e.out, "label: %s\n", fat.Label())
	fmt.Fprintf(e.out, "type: %s\n", fat.FSType())
	fmt.Fprintf(e.out, "sector size: %d\n", info.SectorSize)
	fmt.Fprintf(e.out, "sectors per cluster: %d\n", info.SectorsPerCluster)
	fmt.Fprintf(e.out, "clusters: %d\n", info.CountOfClusters)
	fmt.Fprintf(e.out, "total sectors: %d\n", info.TotalSectors)
	return nil
}
