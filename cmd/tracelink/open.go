package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yousuf/tracelink/internal/editor"
)

const openLongDesc string = `Resolve a stack trace and open the original location in your editor.

The editor is launched by the dev server's open-in-editor helper.

Example:
  pbpaste | tracelink open
  tracelink open crash.txt --editor-url http://localhost:3000/__open-in-editor`

const openShortDesc string = "Open the original location in your editor"

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open [file|-]",
		Short: openShortDesc,
		Long:  openLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := readStack(cmd, args)
			if err != nil {
				return err
			}

			pos, err := a.resolver.Resolve(cmd.Context(), stack)
			if err != nil {
				return err
			}

			if err := a.editor.OpenInEditor(cmd.Context(), editor.Location{
				FileName:     pos.Source,
				LineNumber:   pos.Line,
				ColumnNumber: pos.Column,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", pos.String())
			return nil
		},
	}
}
