package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/okra-platform/dtogen/internal/config"
	"github.com/okra-platform/dtogen/internal/dev"
	"github.com/okra-platform/dtogen/internal/generate"
)

// Dev regenerates on every source change until interrupted.
func (c *Controller) Dev(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(c.out(), pterm.Info.Sprintf("watching %s sources of %s, press Ctrl+C to stop", cfg.Source.Kind, cfg.Name))
	return dev.NewRunner(cfg, regenerate(cfg)).Start(ctx)
}

func regenerate(cfg *config.Config) dev.Regenerator {
	return func(ctx context.Context) error {
		res, err := generate.Run(ctx, cfg, generate.Options{})
		if err != nil {
			return err
		}
		_, err = res.Files.Commit(ctx)
		return err
	}
}
