package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const resolveLongDesc string = `Print the original location of a stack trace.

The stack is read from the given file, or from stdin when the file is "-" or
missing. The first frame outside node_modules and bundler runtime code that
has a source map wins.

Example:
  pbpaste | tracelink resolve
  tracelink resolve crash.txt --endpoint http://localhost:5173`

const resolveShortDesc string = "Print the original location of a stack"

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [file|-]",
		Short: resolveShortDesc,
		Long:  resolveLongDesc,
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

			fmt.Fprintln(cmd.OutOrStdout(), pos.String())
			return nil
		},
	}
}
