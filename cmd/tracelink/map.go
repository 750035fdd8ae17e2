package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yousuf/tracelink/internal/sourcemap"
)

const mapLongDesc string = `Rewrite every frame of a stack trace to its original location.

Frames without a source map keep their text. With --map, the stack is mapped
against a local source map file instead of the dev server; adding --debug
then marks every frame as mapped or unmapped.

Example:
  tracelink map crash.txt
  tracelink map crash.txt --map dist/bundle.js.map --debug`

const mapShortDesc string = "Rewrite a stack to original locations"

type mapCommander struct {
	app     *app
	mapFile string
}

func newMapCmd(a *app) *cobra.Command {
	cmder := &mapCommander{app: a}

	cmd := &cobra.Command{
		Use:   "map [file|-]",
		Short: mapShortDesc,
		Long:  mapLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := readStack(cmd, args)
			if err != nil {
				return err
			}

			mapped, err := cmder.run(cmd, stack)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), mapped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cmder.mapFile, "map", "m", "", "Local source map to use instead of the dev server")

	return cmd
}

func (c *mapCommander) run(cmd *cobra.Command, stack string) (string, error) {
	if c.mapFile == "" {
		return c.app.resolver.MapStack(cmd.Context(), stack)
	}

	data, err := os.ReadFile(c.mapFile)
	if err != nil {
		return "", fmt.Errorf("reading source map: %w", err)
	}
	return sourcemap.Map(string(data), stack, c.app.cfg.Debug)
}
