package sourcemap

import (
	"fmt"
	"strings"
	"unicode"
)

// formatter formats mapped stack frames back into readable stack trace format
type formatter struct{}

func newFormatter() *formatter {
	return &formatter{}
}

// FormatStackFrame formats a single mapped stack frame
func (f *formatter) FormatStackFrame(frame mappedStackFrame) string {
	if !frame.Mapped || frame.IsNative {
		return frame.Raw
	}

	functionName := frame.FunctionName
	if frame.OriginalName != nil && *frame.OriginalName != "" {
		functionName = *frame.OriginalName
	}

	// Keep the indentation of the raw line
	indent := frame.Raw[:len(frame.Raw)-len(strings.TrimLeftFunc(frame.Raw, unicode.IsSpace))]

	return fmt.Sprintf("%sat %s (%s:%d:%d)", indent, functionName,
		*frame.OriginalFileName, *frame.OriginalLineNumber, *frame.OriginalColumnNumber)
}

// FormatStackTrace formats mapped frames into a complete stack trace
func (f *formatter) FormatStackTrace(frames []mappedStackFrame) string {
	lines := make([]string, len(frames))
	for i, frame := range frames {
		lines[i] = f.FormatStackFrame(frame)
	}
	return strings.Join(lines, "\n")
}

// FormatWithMetadata appends the mapping status to every frame
func (f *formatter) FormatWithMetadata(frames []mappedStackFrame) string {
	lines := make([]string, len(frames))
	for i, frame := range frames {
		mappingStatus := "✗ unmapped"
		if frame.Mapped {
			mappingStatus = "✓ mapped"
		}
		lines[i] = fmt.Sprintf("%s %s", f.FormatStackFrame(frame), mappingStatus)
	}
	return strings.Join(lines, "\n")
}
