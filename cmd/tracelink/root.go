package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/config"
	"github.com/yousuf/tracelink/internal/editor"
	"github.com/yousuf/tracelink/internal/logger"
	"github.com/yousuf/tracelink/internal/sourcemap"
)

// version is set at build time.
var version = "dev"

const rootLongDesc string = `tracelink maps JavaScript stack traces back to the original sources.

It reads the source maps served by your dev server, finds the first frame that
belongs to your code and can open it in your editor.

Commands:
  tracelink resolve   Print the original location of a stack
  tracelink map       Rewrite a whole stack to original locations
  tracelink open      Open the original location in your editor
  tracelink watch     Browse the stacks of a sequences file
  tracelink serve     Run the MCP server

Configuration is read from tracelink.yaml and TRACELINK_* environment variables.`

const rootShortDesc string = "Map JavaScript stack traces to original sources"

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	logs     *logSink
	resolver *sourcemap.Resolver
	editor   *editor.Client
}

type rootCommander struct {
	configFile string
	app        app
}

func newRootCmd() *cobra.Command {
	root := &rootCommander{}

	cmd := &cobra.Command{
		Use:           "tracelink",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return root.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if root.app.logger != nil {
				_ = root.app.logger.Sync()
			}
		},
	}

	defaults := config.NewDefaultConfig()
	flags := cmd.PersistentFlags()
	flags.StringVarP(&root.configFile, "config", "c", "", "Config file (default: ./tracelink.yaml or ~/.config/tracelink/tracelink.yaml)")
	flags.BoolP("debug", "d", false, "Enable debug logging")
	flags.String("endpoint", defaults.SourceMap.Endpoint, "Dev server that serves bundles and source maps")
	flags.String("editor-url", defaults.Editor.URL, "Open-in-editor helper URL")

	cmd.AddCommand(
		newResolveCmd(&root.app),
		newMapCmd(&root.app),
		newOpenCmd(&root.app),
		newWatchCmd(&root.app),
		newServeCmd(&root.app),
	)

	return cmd
}

func (r *rootCommander) setup(cmd *cobra.Command) error {
	v, err := config.InitViper(r.configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logs := newLogSink(cmd.ErrOrStderr())
	log := logger.NewWithWriters(cfg.Debug, logs)

	if err := sourcemap.Initialize(sourcemap.Options{
		Endpoint: cfg.SourceMap.Endpoint,
		Timeout:  cfg.SourceMap.Timeout,
		Ignore:   cfg.SourceMap.Ignore,
		Logger:   log.Named("sourcemap"),
	}); err != nil {
		return fmt.Errorf("initializing source maps: %w", err)
	}
	resolver, err := sourcemap.Default()
	if err != nil {
		return err
	}

	client, err := editor.New(editor.Options{
		URL:     cfg.Editor.URL,
		Timeout: cfg.Editor.Timeout,
		Headers: cfg.Editor.Headers,
		Logger:  log.Named("editor"),
	})
	if err != nil {
		return fmt.Errorf("creating editor client: %w", err)
	}

	r.app = app{cfg: cfg, logger: log, logs: logs, resolver: resolver, editor: client}
	return nil
}

// bindFlags lets the global flags override config, but only when set.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range map[string]string{
		"debug":              "debug",
		"sourcemap.endpoint": "endpoint",
		"editor.url":         "editor-url",
	} {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// readStack reads a stack trace from the named file, or stdin for "-" or no
// argument.
func readStack(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading stack: %w", err)
	}

	stack := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(stack) == "" {
		return "", errors.New("no stack trace given")
	}
	return stack, nil
}
