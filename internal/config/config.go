// Package config loads the configuration of the fatvfs server from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	// Image is the path of the FAT image or block device to serve.
	Image string `yaml:"image"`
	// Listen is the address the HTTP server listens on.
	Listen string `yaml:"listen"`
	// SkipChecks allows opening images whose boot sector is not fully valid.
	SkipChecks bool `yaml:"skip_checks"`
	Log        Log  `yaml:"log"`
}

// Default returns the configuration used for all values not set in the file.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:2121",
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path from fsys on top of the defaults.
// Unknown keys are rejected.
func Load(fsys afero.Fs, path string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return cfg, checkpoint.From(err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, checkpoint.Wrap(fmt.Errorf("%s: %w", path, err), ErrInvalidConfig)
	}

	return cfg, nil
}

// Validate checks the values which are needed to serve an image.
func (c Config) Validate() error {
	if c.Image == "" {
		return checkpoint.Wrap(fmt.Errorf("no image configured"), ErrInvalidConfig)
	}

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return checkpoint.Wrap(fmt.Errorf("listen address %q: %w", c.Listen, err), ErrInvalidConfig)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return checkpoint.Wrap(fmt.Errorf("unknown log format %q", c.Log.Format), ErrInvalidConfig)
	}

	return nil
}
