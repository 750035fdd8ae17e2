package timeline

// State is the state of a stack label.
type State int

const (
	// StateUnresolved holds no location and renders nothing.
	StateUnresolved State = iota
	// StateResolved holds a location and accepts activation.
	StateResolved
	// StateOpeningEditor has one open request in flight.
	StateOpeningEditor
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolved:
		return "resolved"
	case StateOpeningEditor:
		return "opening-editor"
	default:
		return "unknown"
	}
}

// EventKind enumerates the events driving a stack label.
type EventKind int

const (
	EventInputChanged EventKind = iota
	EventResolutionSettled
	EventActionTriggered
	EventOpenSettled
)

// Event is an input to Next. Err marks a failed resolution.
type Event struct {
	Kind EventKind
	Err  error
}

// Next returns the state that follows ev in state, and whether ev is
// accepted there. Rejected events leave the state unchanged.
func Next(state State, ev Event) (State, bool) {
	switch ev.Kind {
	case EventInputChanged:
		return StateUnresolved, true
	case EventResolutionSettled:
		if state != StateUnresolved {
			return state, false
		}
		if ev.Err != nil {
			return StateUnresolved, true
		}
		return StateResolved, true
	case EventActionTriggered:
		if state != StateResolved {
			return state, false
		}
		return StateOpeningEditor, true
	case EventOpenSettled:
		if state != StateOpeningEditor {
			return state, false
		}
		return StateResolved, true
	default:
		return state, false
	}
}

// OutcomeKind tags a ResolutionOutcome.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeResolved
	OutcomeFailed
)

// Visual tells a renderer how to draw the label.
type Visual int

const (
	VisualIdle Visual = iota
	VisualHovered
	VisualOpening
)

func (v Visual) String() string {
	switch v {
	case VisualHovered:
		return "hovered"
	case VisualOpening:
		return "opening"
	default:
		return "idle"
	}
}
