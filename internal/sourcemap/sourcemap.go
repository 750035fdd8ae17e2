// Package sourcemap resolves minified JavaScript stack traces to original
// source positions using source maps.
package sourcemap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gosourcemap "github.com/go-sourcemap/sourcemap"
	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/client"
)

const defaultTimeout = 10 * time.Second

// DefaultIgnore lists file fragments whose frames never count as the
// relevant frame of a stack.
var DefaultIgnore = []string{"node_modules", "webpack/runtime", "<anonymous>"}

// Options configures a Resolver.
type Options struct {
	// Endpoint is the base URL that relative file names and maps resolve against.
	Endpoint string
	// Timeout bounds a single map fetch. Defaults to 10s.
	Timeout time.Duration
	// Ignore holds substrings of generated or original file names to skip.
	// Nil means DefaultIgnore.
	Ignore []string
	// HTTPClient overrides the client used for fetching.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Resolver maps stack traces to original positions.
type Resolver struct {
	maps   *mapCache
	ignore []string
	logger *zap.Logger
}

// NewResolver validates the options and builds a Resolver.
func NewResolver(opts Options) (*Resolver, error) {
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", opts.Endpoint, err)
	}
	if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute http(s) URL", opts.Endpoint)
	}
	if !strings.HasSuffix(endpoint.Path, "/") {
		endpoint.Path += "/"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = client.NewHTTPClient(client.Options{Timeout: timeout, Logger: logger})
	}

	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}

	return &Resolver{
		maps:   newMapCache(newFetcher(endpoint, httpClient), timeout, logger),
		ignore: ignore,
		logger: logger,
	}, nil
}

// Resolve maps the first relevant frame of stack to its original position.
// Failures are returned as *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, stack string) (OriginalPosition, error) {
	if strings.TrimSpace(stack) == "" {
		return OriginalPosition{}, &ResolutionError{Stack: stack, Reason: "empty stack trace"}
	}

	frames := newStackParser().ParseStackTrace(stack)
	if len(frames) == 0 {
		return OriginalPosition{}, &ResolutionError{Stack: stack, Reason: "no stack frames found"}
	}

	lookup := r.lookup()
	var lastErr error
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return OriginalPosition{}, &ResolutionError{Stack: stack, Reason: "cancelled", Err: err}
		}

		if !frame.hasPosition() || r.ignored(frame.FileName) {
			continue
		}

		consumer, err := lookup(ctx, frame.FileName)
		if err != nil {
			if ctx.Err() != nil {
				return OriginalPosition{}, &ResolutionError{Stack: stack, Reason: "cancelled", Err: ctx.Err()}
			}
			r.logger.Debug("no source map for frame",
				zap.String("file", frame.FileName),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		mapped := mapStackFrame(consumer, frame)
		if !mapped.Mapped || r.ignored(*mapped.OriginalFileName) {
			continue
		}

		return mapped.position(), nil
	}

	return OriginalPosition{}, &ResolutionError{Stack: stack, Reason: "no frame could be mapped", Err: lastErr}
}

// MapStack rewrites every mappable frame of stack to its original location.
// Frames without a map keep their raw text.
func (r *Resolver) MapStack(ctx context.Context, stack string) (string, error) {
	if strings.TrimSpace(stack) == "" {
		return "", &ResolutionError{Stack: stack, Reason: "empty stack trace"}
	}

	frames := newStackParser().ParseStackTrace(stack)
	lookup := r.lookup()
	mappedFrames := make([]mappedStackFrame, len(frames))
	for i, frame := range frames {
		var consumer *gosourcemap.Consumer
		if frame.hasPosition() && !pseudoFile(frame.FileName) {
			c, err := lookup(ctx, frame.FileName)
			if err != nil && ctx.Err() != nil {
				return "", &ResolutionError{Stack: stack, Reason: "cancelled", Err: ctx.Err()}
			}
			consumer = c
		}
		mappedFrames[i] = mapStackFrame(consumer, frame)
	}

	return newFormatter().FormatStackTrace(mappedFrames), nil
}

// lookup returns a map getter that revalidates each generated file at most
// once, so frames of one stack resolve against the same build.
func (r *Resolver) lookup() func(context.Context, string) (*gosourcemap.Consumer, error) {
	type result struct {
		consumer *gosourcemap.Consumer
		err      error
	}
	seen := make(map[string]result)
	return func(ctx context.Context, fileName string) (*gosourcemap.Consumer, error) {
		if res, ok := seen[fileName]; ok {
			return res.consumer, res.err
		}
		consumer, err := r.maps.get(ctx, fileName)
		if ctx.Err() == nil {
			seen[fileName] = result{consumer, err}
		}
		return consumer, err
	}
}

func (r *Resolver) ignored(fileName string) bool {
	for _, pattern := range r.ignore {
		if pattern != "" && strings.Contains(fileName, pattern) {
			return true
		}
	}
	return false
}

// pseudoFile reports engine placeholders such as "<anonymous>" that name no
// fetchable file.
func pseudoFile(fileName string) bool {
	return strings.HasPrefix(fileName, "<") && strings.HasSuffix(fileName, ">")
}

// Map maps stack against an in-memory source map. In debug mode every frame
// carries its mapping status.
func Map(sourceMap string, stack string, debug bool) (string, error) {
	consumer, err := gosourcemap.Parse("", []byte(sourceMap))
	if err != nil {
		return "", fmt.Errorf("failed to parse source map: %w", err)
	}

	parser := newStackParser()
	mappedFrames := mapStackFrames(consumer, parser.ParseStackTrace(stack))

	f := newFormatter()
	if debug {
		return f.FormatWithMetadata(mappedFrames), nil
	}
	return f.FormatStackTrace(mappedFrames), nil
}

// mapStackFrame maps a single stack frame to its original position
func mapStackFrame(consumer *gosourcemap.Consumer, frame stackFrame) mappedStackFrame {
	if !frame.hasPosition() || consumer == nil {
		return mappedStackFrame{stackFrame: frame}
	}

	// go-sourcemap expects 1-indexed line and 0-indexed column
	file, functionName, line, col, ok := consumer.Source(
		*frame.LineNumber,
		max(*frame.ColumnNumber-1, 0),
	)
	if !ok || file == "" || line <= 0 {
		return mappedStackFrame{stackFrame: frame}
	}

	// Back to 1-indexed, like the stack trace itself
	colPlusOne := col + 1

	var origName *string
	if functionName != "" {
		origName = &functionName
	}

	return mappedStackFrame{
		stackFrame:           frame,
		OriginalFileName:     &file,
		OriginalLineNumber:   &line,
		OriginalColumnNumber: &colPlusOne,
		OriginalName:         origName,
		Mapped:               true,
	}
}

func mapStackFrames(consumer *gosourcemap.Consumer, frames []stackFrame) []mappedStackFrame {
	mappedFrames := make([]mappedStackFrame, len(frames))
	for i, frame := range frames {
		mappedFrames[i] = mapStackFrame(consumer, frame)
	}
	return mappedFrames
}
