// Package server exposes stack resolution as MCP tools.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/editor"
	"github.com/yousuf/tracelink/internal/sourcemap"
)

// StackResolver resolves and rewrites stack traces.
type StackResolver interface {
	Resolve(ctx context.Context, stack string) (sourcemap.OriginalPosition, error)
	MapStack(ctx context.Context, stack string) (string, error)
}

// Opener opens a location in the editor.
type Opener interface {
	OpenInEditor(ctx context.Context, loc editor.Location) error
}

// Options configures the MCP server.
type Options struct {
	Resolver StackResolver
	Opener   Opener
	Logger   *zap.Logger
	Version  string
}

// StackArgs represents the arguments shared by every tool
type StackArgs struct {
	Stack string `json:"stack" jsonschema:"JavaScript stack trace as printed by the runtime (V8 or Firefox format)"`
}

// Location is the original position of a stack trace.
type Location struct {
	Source string `json:"source" jsonschema:"original source file"`
	Line   int    `json:"line" jsonschema:"1-based line"`
	Column int    `json:"column" jsonschema:"0-based column"`
	Label  string `json:"label" jsonschema:"short display label, source:line"`
}

// MappedStack is a stack trace rewritten to original positions.
type MappedStack struct {
	Stack string `json:"stack"`
}

func locationOf(pos sourcemap.OriginalPosition) Location {
	return Location{Source: pos.Source, Line: pos.Line, Column: pos.Column, Label: pos.Label()}
}

// NewMcpServer creates and configures the MCP server
func NewMcpServer(opts Options) *mcp.Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tracelink",
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: `
Source locations for JavaScript stack traces

tracelink reads the source maps served by the local dev server and maps
bundled stack frames back to the original files.

Available Tools:
1. "resolve_stack" - Original location of the first application frame
2. "map_stack" - The whole trace rewritten to original locations
3. "open_in_editor" - Resolve a trace and open its location in the editor

Frames inside node_modules and bundler runtime code are skipped.
`,
	})

	server.AddReceivingMiddleware(createLoggingMiddleware(logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_stack",
		Description: "Resolve a JavaScript stack trace to the original source location of its first application frame.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StackArgs) (*mcp.CallToolResult, Location, error) {
		pos, err := opts.Resolver.Resolve(ctx, args.Stack)
		if err != nil {
			return nil, Location{}, err
		}
		return nil, locationOf(pos), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "map_stack",
		Description: "Rewrite every frame of a JavaScript stack trace to its original source location. Frames without a source map are kept as they are.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StackArgs) (*mcp.CallToolResult, MappedStack, error) {
		if args.Stack == "" {
			return nil, MappedStack{}, errors.New("stack is required")
		}
		mapped, err := opts.Resolver.MapStack(ctx, args.Stack)
		if err != nil {
			return nil, MappedStack{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: mapped},
			},
		}, MappedStack{Stack: mapped}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "open_in_editor",
		Description: "Resolve a JavaScript stack trace and open the original location in the developer's editor.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StackArgs) (*mcp.CallToolResult, Location, error) {
		pos, err := opts.Resolver.Resolve(ctx, args.Stack)
		if err != nil {
			return nil, Location{}, err
		}
		if err := opts.Opener.OpenInEditor(ctx, editor.Location{
			FileName:     pos.Source,
			LineNumber:   pos.Line,
			ColumnNumber: pos.Column,
		}); err != nil {
			return nil, Location{}, fmt.Errorf("opening %s: %w", pos.Label(), err)
		}
		return nil, locationOf(pos), nil
	})

	return server
}
