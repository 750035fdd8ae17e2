package sourcemap

import "fmt"

// ResolutionError reports that no original position could be produced for a
// stack trace. It is diagnostic only and never shown to end users.
type ResolutionError struct {
	Stack  string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolving stack: %s: %v", e.Reason, e.Err)
	}
	return "resolving stack: " + e.Reason
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
