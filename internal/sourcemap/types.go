package sourcemap

import "fmt"

// stackFrame represents a single stack frame parsed from a stack trace
type stackFrame struct {
	// The raw original line from the stack trace
	Raw string
	// Function name (or '<anonymous>' if anonymous)
	FunctionName string
	// Generated file as printed by the runtime (URL or path)
	FileName string
	// Line number (1-indexed), nil if not available
	LineNumber *int
	// Column number (1-indexed), nil if not available
	ColumnNumber *int
	IsNative     bool
}

// hasPosition reports whether the frame points at a mappable location.
func (f stackFrame) hasPosition() bool {
	return !f.IsNative && f.LineNumber != nil && f.ColumnNumber != nil
}

// mappedStackFrame represents a mapped stack frame with original source information
type mappedStackFrame struct {
	stackFrame
	OriginalFileName *string
	// Original line number (1-indexed)
	OriginalLineNumber *int
	// Original column number (1-indexed, matching stack trace output)
	OriginalColumnNumber *int
	// Original function/symbol name from source map
	OriginalName *string
	Mapped       bool
}

// position converts a mapped frame into an OriginalPosition. Columns go back
// to the 0-based convention used by source maps and editors.
func (f mappedStackFrame) position() OriginalPosition {
	pos := OriginalPosition{
		Source: *f.OriginalFileName,
		Line:   *f.OriginalLineNumber,
		Column: max(*f.OriginalColumnNumber-1, 0),
	}
	if f.OriginalName != nil {
		pos.Name = *f.OriginalName
	}
	return pos
}

// OriginalPosition is a location in pre-transform source code.
type OriginalPosition struct {
	Source string `json:"source"`
	// Line is 1-based.
	Line int `json:"line"`
	// Column is 0-based.
	Column int `json:"column"`
	// Name is the original symbol name when the map records one.
	Name string `json:"name,omitempty"`
}

// Label renders the position the way it is shown to users, e.g. "app.ts:42".
func (p OriginalPosition) Label() string {
	return fmt.Sprintf("%s:%d", p.Source, p.Line)
}

func (p OriginalPosition) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Source, p.Line, p.Column)
}
