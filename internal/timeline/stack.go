// Package timeline binds a stack trace to a clickable original source
// location. A Stack resolves its input in the background, holds the result
// and opens it in the editor when activated.
package timeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/editor"
	"github.com/yousuf/tracelink/internal/notify"
	"github.com/yousuf/tracelink/internal/sourcemap"
)

// Resolver maps a stack trace to its original position.
type Resolver interface {
	Resolve(ctx context.Context, stack string) (sourcemap.OriginalPosition, error)
}

// Opener opens a location in the editor.
type Opener interface {
	OpenInEditor(ctx context.Context, loc editor.Location) error
}

// Options wires a Stack to its collaborators.
type Options struct {
	Resolver Resolver
	Opener   Opener
	// Notifier receives open failures. Defaults to notify.Nop.
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Outcome is the result of the latest resolution.
type Outcome struct {
	Kind     OutcomeKind
	Position sourcemap.OriginalPosition
	Reason   string
}

// Snapshot is a consistent view of a Stack.
type Snapshot struct {
	// Version increases with every change; listeners may drop older versions.
	Version  uint64
	Stack    string
	State    State
	Outcome  Outcome
	Location *sourcemap.OriginalPosition
	Visual   Visual
}

// Label is the text to render, empty while nothing is resolved.
func (s Snapshot) Label() string {
	if s.Location == nil {
		return ""
	}
	return s.Location.Label()
}

// Stack is the location binding for one stack trace. All methods are safe
// for concurrent use.
type Stack struct {
	resolver Resolver
	opener   Opener
	notifier notify.Notifier
	logger   *zap.Logger

	// lifetime is cancelled by Destroy and parents every background task
	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu            sync.Mutex
	version       uint64
	stack         string
	hasInput      bool
	gen           uint64
	state         State
	outcome       Outcome
	location      *sourcemap.OriginalPosition
	hovered       bool
	destroyed     bool
	cancelResolve context.CancelFunc
	cancelOpen    context.CancelFunc
	listeners     []func(Snapshot)
}

// New creates a Stack in StateUnresolved.
func New(opts Options) *Stack {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Stack{
		resolver: opts.Resolver,
		opener:   opts.Opener,
		notifier: notifier,
		logger:   logger,
		lifetime: ctx,
		cancel:   cancel,
		state:    StateUnresolved,
	}
}

// OnChange registers fn to run after every change. fn runs outside the
// Stack's lock and must not block.
func (s *Stack) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.listeners = append(s.listeners, fn)
}

// SetStack supplies a new input. An identical input is ignored; a different
// one supersedes any resolution or open request still in flight.
func (s *Stack) SetStack(stack string) {
	s.mu.Lock()
	if s.destroyed || (s.hasInput && stack == s.stack) {
		s.mu.Unlock()
		return
	}

	s.cancelInFlight()
	s.state, _ = Next(s.state, Event{Kind: EventInputChanged})
	s.stack = stack
	s.hasInput = true
	s.gen++
	s.location = nil
	s.outcome = Outcome{Kind: OutcomePending}

	gen := s.gen
	ctx, cancel := context.WithCancel(s.lifetime)
	s.cancelResolve = cancel
	s.wg.Add(1)
	snap, listeners := s.changedLocked()
	s.mu.Unlock()

	emit(listeners, snap)
	go s.resolve(ctx, cancel, gen, stack)
}

func (s *Stack) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, stack string) {
	defer s.wg.Done()
	defer cancel()

	pos, err := s.resolver.Resolve(ctx, stack)

	s.mu.Lock()
	if s.destroyed || gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale resolution", zap.Uint64("generation", gen))
		return
	}

	next, ok := Next(s.state, Event{Kind: EventResolutionSettled, Err: err})
	if !ok {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.cancelResolve = nil
	if err != nil {
		s.outcome = Outcome{Kind: OutcomeFailed, Reason: err.Error()}
	} else {
		s.location = &pos
		s.outcome = Outcome{Kind: OutcomeResolved, Position: pos}
	}
	snap, listeners := s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("could not get original location of stack", zap.Error(err))
	}
	emit(listeners, snap)
}

// Activate opens the held location in the editor. It reports whether a
// request was issued: without a location, or while a request is already in
// flight, it does nothing.
func (s *Stack) Activate() bool {
	s.mu.Lock()
	if s.destroyed || s.location == nil {
		s.mu.Unlock()
		return false
	}

	next, ok := Next(s.state, Event{Kind: EventActionTriggered})
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.state = next

	loc := *s.location
	gen := s.gen
	ctx, cancel := context.WithCancel(s.lifetime)
	s.cancelOpen = cancel
	s.wg.Add(1)
	snap, listeners := s.changedLocked()
	s.mu.Unlock()

	emit(listeners, snap)
	go s.open(ctx, cancel, gen, loc)
	return true
}

func (s *Stack) open(ctx context.Context, cancel context.CancelFunc, gen uint64, loc sourcemap.OriginalPosition) {
	defer s.wg.Done()
	defer cancel()

	err := s.opener.OpenInEditor(ctx, editor.Location{
		FileName:     loc.Source,
		LineNumber:   loc.Line,
		ColumnNumber: loc.Column,
	})

	s.mu.Lock()
	if s.destroyed || gen != s.gen {
		s.mu.Unlock()
		return
	}

	next, ok := Next(s.state, Event{Kind: EventOpenSettled})
	if !ok {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.cancelOpen = nil
	snap, listeners := s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("open in editor failed",
			zap.String("source", loc.Source),
			zap.Int("line", loc.Line),
			zap.Error(err),
		)
		s.notifier.NotifyError(err.Error())
	}
	emit(listeners, snap)
}

// SetHovered records pointer hover. It only affects Visual.
func (s *Stack) SetHovered(hovered bool) {
	s.mu.Lock()
	if s.destroyed || s.hovered == hovered {
		s.mu.Unlock()
		return
	}
	s.hovered = hovered
	snap, listeners := s.changedLocked()
	s.mu.Unlock()

	emit(listeners, snap)
}

// Snapshot returns the current view of the Stack.
func (s *Stack) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Destroy cancels all in-flight work. Completions arriving afterwards are
// dropped and listeners are no longer called.
func (s *Stack) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.listeners = nil
	s.cancelResolve = nil
	s.cancelOpen = nil
	s.mu.Unlock()

	s.cancel()
}

// Wait blocks until every background resolution and open request has returned.
func (s *Stack) Wait() {
	s.wg.Wait()
}

func (s *Stack) cancelInFlight() {
	if s.cancelResolve != nil {
		s.cancelResolve()
		s.cancelResolve = nil
	}
	if s.cancelOpen != nil {
		s.cancelOpen()
		s.cancelOpen = nil
	}
}

func (s *Stack) changedLocked() (Snapshot, []func(Snapshot)) {
	s.version++
	return s.snapshotLocked(), s.listeners
}

func (s *Stack) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version: s.version,
		Stack:   s.stack,
		State:   s.state,
		Outcome: s.outcome,
		Visual:  VisualIdle,
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	switch {
	case s.state == StateOpeningEditor:
		snap.Visual = VisualOpening
	case s.hovered:
		snap.Visual = VisualHovered
	}
	return snap
}

func emit(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
