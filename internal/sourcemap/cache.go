package sourcemap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"time"

	gosourcemap "github.com/go-sourcemap/sourcemap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// mapCache loads and caches decoded source maps.
//
// Dev servers rebuild bundles in place, so every lookup revalidates the
// generated file and its map with conditional requests. Decoded maps are
// keyed by a digest of their content: an unchanged map is never parsed
// twice, and a rebuilt one is picked up on the next lookup.
//
// Concurrent lookups for the same generated file share a single load.
// Failures are not cached so that a later resolution can succeed once the
// map is served.
type mapCache struct {
	fetcher *fetcher
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex
	// generated file URL -> its validators and map reference
	generated map[string]generatedEntry
	// map identity -> its validators and content digest
	maps map[string]mapEntry
	// content digest -> decoded map
	consumers map[string]*gosourcemap.Consumer

	group singleflight.Group
}

type generatedEntry struct {
	validators
	ref mapRef
}

type mapEntry struct {
	validators
	digest string
}

func newMapCache(f *fetcher, timeout time.Duration, logger *zap.Logger) *mapCache {
	return &mapCache{
		fetcher:   f,
		timeout:   timeout,
		logger:    logger,
		generated: make(map[string]generatedEntry),
		maps:      make(map[string]mapEntry),
		consumers: make(map[string]*gosourcemap.Consumer),
	}
}

// get returns the current consumer for the generated file named in a stack frame.
func (c *mapCache) get(ctx context.Context, fileName string) (*gosourcemap.Consumer, error) {
	generated, err := c.fetcher.locate(fileName)
	if err != nil {
		return nil, err
	}

	// The shared load must outlive any single caller's cancellation.
	ch := c.group.DoChan(generated.String(), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.load(loadCtx, generated)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gosourcemap.Consumer), nil
	}
}

func (c *mapCache) load(ctx context.Context, generated *url.URL) (*gosourcemap.Consumer, error) {
	key := generated.String()

	ref, err := c.findMap(ctx, generated)
	if err != nil {
		return nil, err
	}

	var (
		entry mapEntry
		data  []byte
	)
	if ref.inline != nil {
		data = ref.inline
		entry.digest = digest(data)
	} else {
		prev := c.knownMap(ref.key)
		doc, err := c.fetcher.fetch(ctx, ref.url, prev.validators)
		if err != nil {
			return nil, fmt.Errorf("source map for %s: %w", key, err)
		}
		entry.validators = doc.validators
		if doc.notModified {
			entry.digest = prev.digest
		} else {
			data = doc.data
			entry.digest = digest(data)
		}
	}

	c.mu.Lock()
	consumer, ok := c.consumers[entry.digest]
	c.mu.Unlock()

	if !ok {
		if data == nil {
			// Evicted after revalidation; fetch it in full.
			doc, err := c.fetcher.fetch(ctx, ref.url, validators{})
			if err != nil {
				return nil, fmt.Errorf("source map for %s: %w", key, err)
			}
			data = doc.data
			entry = mapEntry{validators: doc.validators, digest: digest(data)}
		}

		// An empty URL keeps sources exactly as written in the map.
		consumer, err = gosourcemap.Parse("", data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse source map %s: %w", ref.key, err)
		}
		c.logger.Debug("source map loaded",
			zap.String("generated", key),
			zap.String("map", ref.key),
			zap.String("digest", entry.digest),
		)
	}

	c.store(ref.key, entry, consumer)
	return consumer, nil
}

// findMap revalidates the generated file and returns the reference to its
// map. An unreadable generated file falls back to the "<file>.map" sidecar.
func (c *mapCache) findMap(ctx context.Context, generated *url.URL) (mapRef, error) {
	key := generated.String()

	c.mu.Lock()
	prev, known := c.generated[key]
	c.mu.Unlock()

	doc, err := c.fetcher.fetch(ctx, generated, prev.validators)
	if err != nil {
		if ctx.Err() != nil {
			return mapRef{}, err
		}
		c.mu.Lock()
		delete(c.generated, key)
		c.mu.Unlock()
		return sidecar(generated), nil
	}
	if doc.notModified && known {
		return prev.ref, nil
	}

	ref, err := mapRefFor(generated, doc.data)
	if err != nil {
		return mapRef{}, err
	}

	c.mu.Lock()
	c.generated[key] = generatedEntry{validators: doc.validators, ref: ref}
	c.mu.Unlock()
	return ref, nil
}

// knownMap returns the entry for a map whose decoded form is still held.
// Revalidating anything else would leave nothing to fall back on.
func (c *mapCache) knownMap(id string) mapEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.maps[id]
	if !ok {
		return mapEntry{}
	}
	if _, ok := c.consumers[entry.digest]; !ok {
		return mapEntry{}
	}
	return entry
}

// store records the current content of a map and drops the decoded form it
// replaced once no other map shares it.
func (c *mapCache) store(id string, entry mapEntry, consumer *gosourcemap.Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, had := c.maps[id]
	c.maps[id] = entry
	c.consumers[entry.digest] = consumer

	if !had || old.digest == entry.digest {
		return
	}
	for _, other := range c.maps {
		if other.digest == old.digest {
			return
		}
	}
	delete(c.consumers, old.digest)
}

// len reports the number of decoded maps held.
func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.consumers)
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
