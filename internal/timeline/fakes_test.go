package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracelink/internal/editor"
	"github.com/yousuf/tracelink/internal/sourcemap"
)

type resolveResult struct {
	pos sourcemap.OriginalPosition
	err error
}

type pendingResolve struct {
	stack  string
	ctx    context.Context
	result chan resolveResult
}

// fakeResolver hands every call to the test, which settles it explicitly.
type fakeResolver struct {
	calls chan *pendingResolve
	// ignoreCancel makes calls wait for a result even after cancellation,
	// simulating a slow resolution that completes late.
	ignoreCancel bool
}

func newFakeResolver(ignoreCancel bool) *fakeResolver {
	return &fakeResolver{calls: make(chan *pendingResolve, 16), ignoreCancel: ignoreCancel}
}

func (f *fakeResolver) Resolve(ctx context.Context, stack string) (sourcemap.OriginalPosition, error) {
	p := &pendingResolve{stack: stack, ctx: ctx, result: make(chan resolveResult, 1)}
	f.calls <- p
	if f.ignoreCancel {
		r := <-p.result
		return r.pos, r.err
	}
	select {
	case r := <-p.result:
		return r.pos, r.err
	case <-ctx.Done():
		return sourcemap.OriginalPosition{}, ctx.Err()
	}
}

func (f *fakeResolver) next(t *testing.T) *pendingResolve {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("resolver was not called")
		return nil
	}
}

type pendingOpen struct {
	loc    editor.Location
	ctx    context.Context
	result chan error
}

type fakeOpener struct {
	calls chan *pendingOpen
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{calls: make(chan *pendingOpen, 16)}
}

func (f *fakeOpener) OpenInEditor(ctx context.Context, loc editor.Location) error {
	p := &pendingOpen{loc: loc, ctx: ctx, result: make(chan error, 1)}
	f.calls <- p
	select {
	case err := <-p.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeOpener) next(t *testing.T) *pendingOpen {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("opener was not called")
		return nil
	}
}

// recorder collects notifications.
type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) NotifyError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func waitForState(t *testing.T, s *Stack, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "state never became %s", want)
}
