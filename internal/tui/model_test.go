package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracelink/internal/editor"
	"github.com/yousuf/tracelink/internal/sequence"
	"github.com/yousuf/tracelink/internal/sourcemap"
)

// mapResolver resolves stacks from a fixed table.
type mapResolver map[string]sourcemap.OriginalPosition

func (r mapResolver) Resolve(_ context.Context, stack string) (sourcemap.OriginalPosition, error) {
	pos, ok := r[stack]
	if !ok {
		return sourcemap.OriginalPosition{}, &sourcemap.ResolutionError{Reason: "no frame could be mapped"}
	}
	return pos, nil
}

type recordingOpener struct {
	mu    sync.Mutex
	opens []editor.Location
	err   error
}

func (o *recordingOpener) OpenInEditor(_ context.Context, loc editor.Location) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens = append(o.opens, loc)
	return o.err
}

func (o *recordingOpener) calls() []editor.Location {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]editor.Location(nil), o.opens...)
}

var resolver = mapResolver{
	"render stack": {Source: "app.ts", Line: 42, Column: 7},
	"commit stack": {Source: "src/commit.ts", Line: 9, Column: 0},
}

func newTestModel(t *testing.T, opener *recordingOpener, showUnavailable bool) *Model {
	t.Helper()
	m := New(Options{Resolver: resolver, Opener: opener, ShowUnavailable: showUnavailable})
	t.Cleanup(m.Close)
	return m
}

// pump feeds queued events into Update until cond holds.
func pump(t *testing.T, m *Model, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		for {
			select {
			case msg := <-m.events:
				m.Update(msg)
				continue
			default:
			}
			return cond()
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func viewContains(m *Model, text string) func() bool {
	return func() bool { return strings.Contains(m.View(), text) }
}

func press(m *Model, k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestRendersResolvedLabels(t *testing.T) {
	m := newTestModel(t, &recordingOpener{}, false)
	assert.Contains(t, m.View(), "no sequences")

	m.Update(SequencesMsg{
		{Name: "render", Stack: "render stack"},
		{Name: "commit", Stack: "commit stack"},
		{Name: "broken", Stack: "garbage"},
	})

	pump(t, m, viewContains(m, "src/commit.ts:9"))
	view := m.View()
	assert.Contains(t, view, "app.ts:42")
	assert.Contains(t, view, "broken")
	assert.NotContains(t, view, "source unavailable")
}

func TestShowUnavailable(t *testing.T) {
	m := newTestModel(t, &recordingOpener{}, true)
	m.Update(SequencesMsg{{Name: "broken", Stack: "garbage"}})

	pump(t, m, viewContains(m, "source unavailable"))
}

func TestNavigationHovers(t *testing.T) {
	m := newTestModel(t, &recordingOpener{}, false)
	m.Update(SequencesMsg{
		{Name: "render", Stack: "render stack"},
		{Name: "commit", Stack: "commit stack"},
	})
	pump(t, m, viewContains(m, "src/commit.ts:9"))

	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, "hovered", m.rows[0].snap.Visual.String())

	press(m, "j")
	assert.Equal(t, 1, m.cursor)
	assert.Equal(t, "idle", m.rows[0].snap.Visual.String())
	assert.Equal(t, "hovered", m.rows[1].snap.Visual.String())

	press(m, "down")
	assert.Equal(t, 1, m.cursor, "cursor stops at the last row")

	press(m, "k")
	press(m, "up")
	assert.Equal(t, 0, m.cursor)
}

func TestEnterOpensSelectedLocation(t *testing.T) {
	opener := &recordingOpener{}
	m := newTestModel(t, opener, false)
	m.Update(SequencesMsg{
		{Name: "render", Stack: "render stack"},
		{Name: "commit", Stack: "commit stack"},
	})
	pump(t, m, viewContains(m, "src/commit.ts:9"))

	press(m, "down")
	press(m, "enter")

	pump(t, m, func() bool { return len(opener.calls()) == 1 })
	assert.Equal(t, editor.Location{FileName: "src/commit.ts", LineNumber: 9, ColumnNumber: 0}, opener.calls()[0])
}

func TestOpenFailureShowsNotice(t *testing.T) {
	opener := &recordingOpener{err: errors.New("Editor not found")}
	m := newTestModel(t, opener, false)
	m.Update(SequencesMsg{{Name: "render", Stack: "render stack"}})
	pump(t, m, viewContains(m, "app.ts:42"))

	press(m, "enter")
	pump(t, m, viewContains(m, "Editor not found"))

	// The next activation clears the notice.
	opener.mu.Lock()
	opener.err = nil
	opener.mu.Unlock()
	press(m, "enter")
	assert.NotContains(t, m.View(), "Editor not found")
}

func TestSequencesReload(t *testing.T) {
	m := newTestModel(t, &recordingOpener{}, false)
	m.Update(SequencesMsg{
		{Name: "render", Stack: "render stack"},
		{Name: "commit", Stack: "commit stack"},
	})
	pump(t, m, viewContains(m, "src/commit.ts:9"))
	press(m, "down")

	render := m.rows[0].stack
	commit := m.rows[1].stack

	m.Update(SequencesMsg{{Name: "render", Stack: "commit stack"}})
	pump(t, m, func() bool {
		return len(m.rows) == 1 && m.rows[0].snap.Label() == "src/commit.ts:9"
	})

	assert.Same(t, render, m.rows[0].stack, "rows are kept by name")
	assert.Equal(t, 0, m.cursor)
	assert.False(t, commit.Activate(), "removed rows are destroyed")
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &recordingOpener{}, false)

	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestListenStopsAfterClose(t *testing.T) {
	m := New(Options{Resolver: resolver, Opener: &recordingOpener{}})
	listen := m.listen()
	m.Close()
	m.Close()

	assert.Nil(t, listen())
}
