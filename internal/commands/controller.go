// Package commands contains the CLI commands for the application
package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/okra-platform/dtogen/internal/config"
	"github.com/okra-platform/dtogen/internal/errors"
)

// Flags are the global command line flags.
type Flags struct {
	LogLevel   string
	ConfigPath string
}

// Controller runs the commands. Out and Dir default to stdout and the
// working directory.
type Controller struct {
	Flags *Flags
	Out   io.Writer
	Dir   string
}

func (c *Controller) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Controller) dir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapIO(err, "failed to get working directory")
	}
	return wd, nil
}

// loadConfig reads the --config file, or the nearest dtogen.yaml.
func (c *Controller) loadConfig() (*config.Config, error) {
	if c.Flags != nil && c.Flags.ConfigPath != "" {
		return config.LoadConfigFromPath(c.Flags.ConfigPath)
	}
	dir, err := c.dir()
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(dir)
}

// display shortens path relative to the config directory.
func display(cfg *config.Config, path string) string {
	if rel, err := filepath.Rel(cfg.Dir, path); err == nil {
		return rel
	}
	return path
}
