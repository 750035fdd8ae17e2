// Package editor asks the local development helper to open a file in the
// user's configured editor.
package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/client"
)

const (
	DefaultURL     = "http://localhost:3000/api/open-in-editor"
	defaultTimeout = 30 * time.Second
)

// Location is the place to open.
type Location struct {
	FileName     string
	LineNumber   int
	ColumnNumber int
}

// openRequest is the payload understood by the helper.
type openRequest struct {
	OriginalFileName     string  `json:"originalFileName"`
	OriginalLineNumber   int     `json:"originalLineNumber"`
	OriginalColumnNumber int     `json:"originalColumnNumber"`
	OriginalFunctionName *string `json:"originalFunctionName"`
	OriginalScriptCode   *string `json:"originalScriptCode"`
}

// Options configures a Client.
type Options struct {
	URL     string
	Timeout time.Duration
	// Headers are added to every request, e.g. Authorization.
	Headers map[string]string
	// HTTPClient overrides the client built from Timeout and Headers.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the open-in-editor helper over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// New creates a Client. An empty URL selects DefaultURL.
func New(opts Options) (*Client, error) {
	endpoint := opts.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid editor url %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("editor url %q must be an absolute http(s) URL", endpoint)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := opts.HTTPClient
	if c == nil {
		c = client.NewHTTPClient(client.Options{
			Timeout: timeout,
			Headers: opts.Headers,
			Logger:  opts.Logger,
		})
	}

	return &Client{url: u.String(), http: c}, nil
}

// OpenInEditor asks the helper to open loc. Any failure is an *OpenError.
func (c *Client) OpenInEditor(ctx context.Context, loc Location) error {
	body, err := json.Marshal(openRequest{
		OriginalFileName:     loc.FileName,
		OriginalLineNumber:   loc.LineNumber,
		OriginalColumnNumber: loc.ColumnNumber,
	})
	if err != nil {
		return &OpenError{Location: loc, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &OpenError{Location: loc, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &OpenError{Location: loc, Message: fmt.Sprintf("could not reach editor helper: %v", err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return &OpenError{
		Location:   loc,
		StatusCode: resp.StatusCode,
		Message:    failureMessage(resp),
	}
}

// failureMessage extracts the helper's explanation from an error response.
func failureMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return fmt.Sprintf("editor helper returned status %d", resp.StatusCode)
}
