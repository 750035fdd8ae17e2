// Package tui renders sequences as a list of clickable source locations.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/notify"
	"github.com/yousuf/tracelink/internal/sequence"
	"github.com/yousuf/tracelink/internal/timeline"
)

// Options configures a Model.
type Options struct {
	Resolver timeline.Resolver
	Opener   timeline.Opener
	// Notifier also receives open failures, next to the footer.
	Notifier notify.Notifier
	Logger   *zap.Logger
	// ShowUnavailable renders a placeholder for stacks that failed to resolve.
	ShowUnavailable bool
}

// SequencesMsg replaces the displayed sequences. Rows are matched by name;
// a row whose stack changed is resolved again.
type SequencesMsg []sequence.Sequence

type (
	refreshMsg struct{}
	noticeMsg  string
)

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Open key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Open: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type row struct {
	name  string
	stack *timeline.Stack
	snap  timeline.Snapshot
}

// Model is the Bubble Tea model for the sequence list.
type Model struct {
	opts     Options
	notifier notify.Notifier
	logger   *zap.Logger
	styles   styles
	spinner  spinner.Model

	rows   []*row
	cursor int
	notice string

	// events carries stack changes and notifications into Update.
	events chan tea.Msg
	done   chan struct{}
}

// New creates an empty Model. Feed it a SequencesMsg to populate it and call
// Close once the program has exited.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Model{
		opts:    opts,
		logger:  logger,
		styles:  defaultStyles(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		events:  make(chan tea.Msg, 64),
		done:    make(chan struct{}),
	}
	m.notifier = notify.Multi{notify.Func(func(message string) {
		m.post(noticeMsg(message))
	}), opts.Notifier}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.move(-1)
		case key.Matches(msg, keys.Down):
			m.move(1)
		case key.Matches(msg, keys.Open):
			if r := m.selected(); r != nil {
				m.notice = ""
				r.stack.Activate()
				m.refresh()
			}
		}
		return m, nil

	case SequencesMsg:
		m.setSequences(msg)
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.listen()

	case noticeMsg:
		m.notice = string(msg)
		return m, m.listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("tracelink"))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(m.styles.Muted.Render("no sequences"))
		b.WriteString("\n")
	}
	for i, r := range m.rows {
		cursor := "  "
		if i == m.cursor {
			cursor = m.styles.Cursor.Render("> ")
		}
		b.WriteString(cursor)
		b.WriteString(m.styles.Name.Render(r.name))
		b.WriteString(m.label(r.snap))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString(m.styles.Error.Render(m.notice))
	} else {
		b.WriteString(m.styles.Footer.Render("↑/k up • ↓/j down • enter open • q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) label(snap timeline.Snapshot) string {
	text := snap.Label()
	if text == "" {
		if m.opts.ShowUnavailable && snap.Outcome.Kind == timeline.OutcomeFailed {
			return m.styles.Muted.Render("source unavailable")
		}
		return ""
	}

	switch snap.Visual {
	case timeline.VisualOpening:
		return m.spinner.View() + " " + m.styles.Opening.Render(text)
	case timeline.VisualHovered:
		return m.styles.Hovered.Render(text)
	default:
		return m.styles.Idle.Render(text)
	}
}

// Close destroys every row's stack and stops delivering events.
func (m *Model) Close() {
	select {
	case <-m.done:
		return
	default:
	}
	close(m.done)
	for _, r := range m.rows {
		r.stack.Destroy()
	}
	for _, r := range m.rows {
		r.stack.Wait()
	}
}

func (m *Model) setSequences(seqs []sequence.Sequence) {
	existing := make(map[string]*row, len(m.rows))
	for _, r := range m.rows {
		existing[r.name] = r
	}

	rows := make([]*row, 0, len(seqs))
	for _, seq := range seqs {
		r, ok := existing[seq.Name]
		if ok {
			delete(existing, seq.Name)
		} else {
			r = &row{name: seq.Name, stack: m.newStack()}
		}
		r.stack.SetStack(seq.Stack)
		rows = append(rows, r)
	}
	for _, r := range existing {
		r.stack.Destroy()
	}

	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.hover()
	m.refresh()
}

func (m *Model) newStack() *timeline.Stack {
	s := timeline.New(timeline.Options{
		Resolver: m.opts.Resolver,
		Opener:   m.opts.Opener,
		Notifier: m.notifier,
		Logger:   m.logger,
	})
	s.OnChange(func(timeline.Snapshot) {
		m.post(refreshMsg{})
	})
	return s
}

func (m *Model) move(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	m.hover()
	m.refresh()
}

// hover marks the selected row as hovered and every other row as not.
func (m *Model) hover() {
	for i, r := range m.rows {
		r.stack.SetHovered(i == m.cursor)
	}
}

func (m *Model) selected() *row {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

func (m *Model) refresh() {
	for _, r := range m.rows {
		r.snap = r.stack.Snapshot()
	}
}

// post hands msg to the program without blocking the caller. A full queue
// already holds a pending refresh, so dropping is safe for refreshes.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.done:
	default:
		if _, ok := msg.(noticeMsg); ok {
			m.logger.Debug("dropping notification, event queue full")
		}
	}
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.done:
			return nil
		}
	}
}
