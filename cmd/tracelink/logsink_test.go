package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracelink/internal/logger"
	"github.com/yousuf/tracelink/internal/sourcemap"
	"github.com/yousuf/tracelink/internal/timeline"
)

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (sourcemap.OriginalPosition, error) {
	return sourcemap.OriginalPosition{}, &sourcemap.ResolutionError{Reason: "no frame could be mapped", Err: errors.New("status 404")}
}

// warnUnresolved drives a stack whose resolution fails, which logs a warning.
func warnUnresolved(t *testing.T, sink *logSink) {
	t.Helper()
	log := logger.NewWithWriters(false, sink)
	s := timeline.New(timeline.Options{Resolver: failingResolver{}, Logger: log})
	defer func() {
		s.Destroy()
		s.Wait()
	}()

	failed := make(chan struct{}, 1)
	s.OnChange(func(snap timeline.Snapshot) {
		if snap.Outcome.Kind == timeline.OutcomeFailed {
			select {
			case failed <- struct{}{}:
			default:
			}
		}
	})
	s.SetStack("Error\n    at App (bundle.js:2:10)")

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("resolution did not fail")
	}
	require.NoError(t, log.Sync())
}

func TestLogSinkHoldsUntilRelease(t *testing.T) {
	var stderr bytes.Buffer
	sink := newLogSink(&stderr)

	require.NoError(t, sink.hold(""))
	warnUnresolved(t, sink)
	assert.Empty(t, stderr.String())

	require.NoError(t, sink.release())
	assert.Contains(t, stderr.String(), "could not get original location of stack")

	// Released sinks write straight through.
	stderr.Reset()
	_, err := sink.Write([]byte("after\n"))
	require.NoError(t, err)
	assert.Equal(t, "after\n", stderr.String())
}

func TestLogSinkWritesToFile(t *testing.T) {
	var stderr bytes.Buffer
	sink := newLogSink(&stderr)
	path := filepath.Join(t.TempDir(), "watch.log")

	require.NoError(t, sink.hold(path))
	warnUnresolved(t, sink)
	require.NoError(t, sink.release())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "could not get original location of stack")
	assert.Empty(t, stderr.String())
}

func TestLogSinkBadFile(t *testing.T) {
	sink := newLogSink(&bytes.Buffer{})
	err := sink.hold(filepath.Join(t.TempDir(), "missing", "watch.log"))
	assert.Error(t, err)
}
