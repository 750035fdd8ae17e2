package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/yousuf/tracelink/internal/sequence"
	"github.com/yousuf/tracelink/internal/tui"
)

const watchLongDesc string = `Browse the stacks of a sequences file and open them in your editor.

The file lists named stacks:

  sequences:
    - name: render
      stack: |
        Error
            at App (http://localhost:3000/static/js/bundle.js:2:10)

Each row shows the original source:line of its stack. Use up/down or k/j to
select, enter to open and q to quit. The file is reloaded when it changes.

Logs are held while the UI runs and printed to stderr when it exits, or
written to --log-file as they happen.`

const watchShortDesc string = "Browse the stacks of a sequences file"

func newWatchCmd(a *app) *cobra.Command {
	var file, logFile string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), a, file, logFile)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "sequences.yaml", "Sequences file to display")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of printing them on exit")

	return cmd
}

func runWatch(ctx context.Context, a *app, file, logFile string) (err error) {
	if _, err := sequence.Load(file); err != nil {
		return err
	}

	if err := a.logs.hold(logFile); err != nil {
		return err
	}
	defer func() {
		_ = a.logger.Sync()
		err = errors.Join(err, a.logs.release())
	}()
	log := a.logger.Named("watch")

	model := tui.New(tui.Options{
		Resolver:        a.resolver,
		Opener:          a.editor,
		Logger:          log,
		ShowUnavailable: a.cfg.UI.ShowUnavailable,
	})
	defer model.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithContext(ctx))

	watchErr := make(chan error, 1)
	go func() {
		err := sequence.Watch(ctx, file, log, func(seqs []sequence.Sequence) {
			p.Send(tui.SequencesMsg(seqs))
		})
		if err != nil {
			p.Quit()
		}
		watchErr <- err
	}()

	_, err = p.Run()
	cancel()
	if werr := <-watchErr; werr != nil {
		return fmt.Errorf("watching %s: %w", file, werr)
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
