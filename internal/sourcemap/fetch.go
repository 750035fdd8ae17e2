package sourcemap

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxDocumentSize caps generated files and maps read into memory.
var maxDocumentSize int64 = 64 << 20

var sourceMappingURLPattern = regexp.MustCompile(`(?m)^\s*//[#@]\s*sourceMappingURL=(\S+)\s*$`)

// fetcher reads generated files and their source maps from the configured
// endpoint, absolute URLs, or the local filesystem.
type fetcher struct {
	endpoint *url.URL
	client   *http.Client
}

func newFetcher(endpoint *url.URL, client *http.Client) *fetcher {
	return &fetcher{
		endpoint: endpoint,
		client:   client,
	}
}

// locate turns a file name printed in a stack frame into a URL. Absolute
// filesystem paths become file URLs; relative names resolve against the endpoint.
func (f *fetcher) locate(fileName string) (*url.URL, error) {
	if fileName == "" {
		return nil, fmt.Errorf("empty file name")
	}

	if filepath.IsAbs(fileName) && !strings.HasPrefix(fileName, "//") {
		return &url.URL{Scheme: "file", Path: filepath.ToSlash(fileName)}, nil
	}

	u, err := url.Parse(fileName)
	if err != nil {
		return nil, fmt.Errorf("invalid file name %q: %w", fileName, err)
	}

	switch u.Scheme {
	case "http", "https", "file":
		return u, nil
	case "":
		return f.endpoint.ResolveReference(u), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, fileName)
	}
}

// validators are the HTTP cache validators of a fetched document.
type validators struct {
	etag         string
	lastModified string
}

func (v validators) empty() bool {
	return v.etag == "" && v.lastModified == ""
}

// document is the result of a fetch. notModified reports a 304 answer to a
// conditional request; data is then nil and the caller's copy is current.
type document struct {
	data []byte
	validators
	notModified bool
}

// fetch loads a document, revalidating against prev when it is set. Files
// on disk carry no validators and are read every time.
func (f *fetcher) fetch(ctx context.Context, u *url.URL, prev validators) (document, error) {
	if u.Scheme == "file" {
		data, err := os.ReadFile(filepath.FromSlash(u.Path))
		if err != nil {
			return document{}, fmt.Errorf("failed to read %s: %w", u.Path, err)
		}
		if int64(len(data)) > maxDocumentSize {
			return document{}, fmt.Errorf("%s is larger than %d bytes", u.Path, maxDocumentSize)
		}
		return document{data: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return document{}, fmt.Errorf("failed to create request for %s: %w", u, err)
	}
	if prev.etag != "" {
		req.Header.Set("If-None-Match", prev.etag)
	}
	if prev.lastModified != "" {
		req.Header.Set("If-Modified-Since", prev.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return document{}, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && !prev.empty() {
		_, _ = io.Copy(io.Discard, resp.Body)
		return document{validators: prev, notModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return document{}, fmt.Errorf("failed to fetch %s: status %d", u, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return document{}, fmt.Errorf("failed to read %s: %w", u, err)
	}
	if int64(len(data)) > maxDocumentSize {
		return document{}, fmt.Errorf("%s is larger than %d bytes", u, maxDocumentSize)
	}

	return document{
		data: data,
		validators: validators{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}

// mapRef describes where the source map of a generated file lives.
type mapRef struct {
	// key is the source-map identity used for caching
	key string
	url *url.URL
	// inline holds the decoded map when it is embedded in the generated file
	inline []byte
}

// mapRefFor inspects a generated file for a sourceMappingURL comment and
// falls back to the conventional "<file>.map" sidecar without one.
func mapRefFor(generated *url.URL, body []byte) (mapRef, error) {
	ref, ok := lastSourceMappingURL(body)
	if !ok {
		return sidecar(generated), nil
	}

	if strings.HasPrefix(ref, "data:") {
		data, err := decodeDataURL(ref)
		if err != nil {
			return mapRef{}, fmt.Errorf("inline source map in %s: %w", generated, err)
		}
		return mapRef{key: "inline:" + generated.String(), inline: data}, nil
	}

	rel, err := url.Parse(ref)
	if err != nil {
		return mapRef{}, fmt.Errorf("invalid sourceMappingURL %q in %s: %w", ref, generated, err)
	}
	mapURL := generated.ResolveReference(rel)
	return mapRef{key: mapURL.String(), url: mapURL}, nil
}

func sidecar(generated *url.URL) mapRef {
	u := *generated
	u.Path += ".map"
	u.RawPath = ""
	return mapRef{key: u.String(), url: &u}
}

func lastSourceMappingURL(body []byte) (string, bool) {
	matches := sourceMappingURLPattern.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return "", false
	}
	return string(matches[len(matches)-1][1]), true
}

// decodeDataURL decodes a data: URL carrying a JSON source map.
func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding base64 payload: %w", err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return []byte(data), nil
}
