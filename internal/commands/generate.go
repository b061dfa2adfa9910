package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/okra-platform/dtogen/internal/generate"
	"github.com/okra-platform/dtogen/internal/output"
)

// GenerateOptions are the flags of the generate command.
type GenerateOptions struct {
	Targets []string
	DryRun  bool
}

// Generate runs the pipeline and writes the files. With DryRun it prints
// the planned files instead.
func (c *Controller) Generate(ctx context.Context, opts GenerateOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	res, err := generate.Run(ctx, cfg, generate.Options{Targets: opts.Targets})
	if err != nil {
		return err
	}

	if opts.DryRun {
		drift, err := res.Files.Check(ctx)
		if err != nil {
			return err
		}
		status := make(map[string]output.DriftStatus, len(drift))
		for _, d := range drift {
			status[d.Path] = d.Status
		}
		rows := [][]string{{"File", "Bytes", "Status"}}
		for _, f := range res.Files.Files() {
			s := "unchanged"
			switch status[f.Path] {
			case output.DriftMissing:
				s = "new"
			case output.DriftChanged:
				s = "changed"
			}
			rows = append(rows, []string{display(cfg, f.Path), strconv.Itoa(len(f.Content)), s})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out(), table)
		fmt.Fprintln(c.out(), pterm.Info.Sprintf("dry run: %d files planned, nothing written", res.Files.Len()))
		return nil
	}

	result, err := res.Files.Commit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out(), pterm.Success.Sprintf("%s: wrote %d files (%d unchanged)",
		cfg.Name, len(result.Written), len(result.Unchanged)))
	return nil
}
