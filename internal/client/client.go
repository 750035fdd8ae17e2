// Package client builds the HTTP clients tracelink uses to reach the dev
// server.
package client

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Options configures an HTTP client.
type Options struct {
	Timeout time.Duration
	// Headers are set on every request, e.g. Authorization.
	Headers map[string]string
	Logger  *zap.Logger
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// NewHTTPClient returns a client whose requests carry the configured headers
// and are logged at debug level.
func NewHTTPClient(opts Options) *http.Client {
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &LoggingRoundTripper{
			headers: opts.Headers,
			logger:  logger,
			next:    next,
		},
	}
}

// LoggingRoundTripper is a custom RoundTripper for logging requests/responses
type LoggingRoundTripper struct {
	headers map[string]string
	logger  *zap.Logger
	next    http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(lrt.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range lrt.headers {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := lrt.next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		lrt.logger.Debug("http request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	lrt.logger.Debug("http request", append(fields, zap.Int("status", resp.StatusCode))...)

	return resp, nil
}
