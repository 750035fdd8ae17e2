// Package sequence reads the named stack traces tracelink displays and
// keeps them current while the file changes.
package sequence

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Sequence is one named stack trace.
type Sequence struct {
	Name  string `yaml:"name"`
	Stack string `yaml:"stack"`
}

type file struct {
	Sequences []Sequence `yaml:"sequences"`
}

// debounce coalesces the bursts of events editors produce on save.
const debounce = 50 * time.Millisecond

// Parse decodes a sequences document. Names must be present and unique.
func Parse(data []byte) ([]Sequence, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sequences: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Sequences))
	for i, s := range f.Sequences {
		if s.Name == "" {
			return nil, fmt.Errorf("sequence %d: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("sequence %q: duplicate name", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return f.Sequences, nil
}

// Load reads and parses the sequences file at path.
func Load(path string) ([]Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequences: %w", err)
	}
	return Parse(data)
}

// Watch calls fn with the sequences in path, then again each time the file
// changes, until ctx is done. Changes that fail to parse are logged and
// skipped so fn keeps the last good set.
func Watch(ctx context.Context, path string, logger *zap.Logger, fn func([]Sequence)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving sequences path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sequences: %w", err)
	}
	seqs, err := Parse(data)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating sequence watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching sequences dir: %w", err)
	}

	fn(seqs)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("sequence watcher error", zap.Error(err))

		case <-timer.C:
			next, err := os.ReadFile(path)
			if err != nil {
				logger.Debug("sequences not readable", zap.String("path", path), zap.Error(err))
				continue
			}
			if bytes.Equal(next, data) {
				continue
			}
			seqs, err := Parse(next)
			if err != nil {
				logger.Warn("ignoring invalid sequences", zap.String("path", path), zap.Error(err))
				continue
			}
			data = next
			logger.Debug("sequences reloaded", zap.String("path", path), zap.Int("count", len(seqs)))
			fn(seqs)
		}
	}
}
