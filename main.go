package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/okra-platform/dtogen/internal/commands"
	"github.com/okra-platform/dtogen/internal/errors"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	ctrl := &commands.Controller{
		Flags: &commands.Flags{},
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.Command{
		Name:    "dtogen",
		Usage:   "Generate DTO types and API contracts for TypeScript, Python, Go and protobuf from one object model",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DTOGEN_LOG_LEVEL"),
				Value:       "info",
				Destination: &ctrl.Flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to dtogen.yaml (default: nearest in the working directory or its parents)",
				Destination: &ctrl.Flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// .env is optional
			_ = godotenv.Load()

			level, err := zerolog.ParseLevel(ctrl.Flags.LogLevel)
			if err != nil {
				return ctx, errors.Wrap(err, "failed to parse log level")
			}

			log.Logger = log.Level(level)
			return log.Logger.WithContext(ctx), nil
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate every configured target",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "target",
						Usage: "only generate the named target (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the planned files without writing them",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Generate(ctx, commands.GenerateOptions{
						Targets: c.StringSlice("target"),
						DryRun:  c.Bool("dry-run"),
					})
				},
			},
			{
				Name:  "check",
				Usage: "Fail when committed files differ from a fresh generation",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Check(ctx)
				},
			},
			{
				Name:  "dev",
				Usage: "Regenerate whenever a source file changes",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Dev(ctx)
				},
			},
			{
				Name:  "init",
				Usage: "Create a dtogen.yaml in the current directory",
				Action: func(ctx context.Context, c *cli.Command) error {
					return ctrl.Init(ctx)
				},
			},
		},
	}

	ctx := context.Background()

	if err := app.Run(ctx, os.Args); err != nil {
		event := log.Error().Err(err).Str("category", errors.Category(err))
		for _, hint := range errors.GetAllHints(err) {
			event = event.Str("hint", hint)
		}
		event.Msg("dtogen failed")
		os.Exit(1)
	}
}
