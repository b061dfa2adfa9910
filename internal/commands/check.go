package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/okra-platform/dtogen/internal/errors"
	"github.com/okra-platform/dtogen/internal/generate"
)

// ErrDrift marks a check that found out-of-date files.
var ErrDrift = errors.New("generated files are out of date")

// Check regenerates in memory and compares the result with the committed
// files.
func (c *Controller) Check(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	res, err := generate.Run(ctx, cfg, generate.Options{})
	if err != nil {
		return err
	}
	drift, err := res.Files.Check(ctx)
	if err != nil {
		return err
	}
	if len(drift) == 0 {
		fmt.Fprintln(c.out(), pterm.Success.Sprintf("%d generated files are up to date", res.Files.Len()))
		return nil
	}

	rows := [][]string{{"File", "Status"}}
	for _, d := range drift {
		rows = append(rows, []string{display(cfg, d.Path), string(d.Status)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out(), table)
	return errors.Mark(errors.Newf("%d of %d generated files are out of date; run dtogen generate", len(drift), res.Files.Len()), ErrDrift)
}
