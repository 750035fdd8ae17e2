package sourcemap

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// at functionName (native)
	nativePattern = regexp.MustCompile(`at\s+(.+?)\s+\(native\)`)
	// at functionName (file:line:column)
	namedPattern = regexp.MustCompile(`at\s+(.+?)\s+\((.+?):(\d+):(\d+)\)`)
	// at file:line:column
	anonymousPattern = regexp.MustCompile(`at\s+(.+?):(\d+):(\d+)`)
	// functionName@file:line:column (Firefox, Safari)
	geckoPattern = regexp.MustCompile(`^([^@\s]*)@(.+?):(\d+):(\d+)$`)
	// file:line:column
	barePattern = regexp.MustCompile(`^(.+?):(\d+):(\d+)$`)
)

// stackParser parses JavaScript stack traces into structured stackFrame objects
type stackParser struct{}

func newStackParser() *stackParser {
	return &stackParser{}
}

// ParseStackTrace parses a full stack trace (multiple lines) into an array of StackFrames.
// Lines that are not frames, such as the error message, are skipped.
func (p *stackParser) ParseStackTrace(stackTrace string) []stackFrame {
	lines := strings.Split(stackTrace, "\n")
	frames := make([]stackFrame, 0, len(lines))

	for _, line := range lines {
		if frame := p.ParseStackLine(strings.TrimRight(line, "\r")); frame != nil {
			frames = append(frames, *frame)
		}
	}

	return frames
}

// ParseStackLine parses a single line from a stack trace
// Handles formats like:
// - at functionName (file:line:column)
// - at file:line:column
// - at functionName (native)
// - functionName@file:line:column
// - file:line:column
func (p *stackParser) ParseStackLine(line string) *stackFrame {
	trimmedLine := strings.TrimSpace(line)
	if trimmedLine == "" {
		return nil
	}

	if strings.Contains(trimmedLine, "(native)") {
		functionName := "unknown"
		if matches := nativePattern.FindStringSubmatch(trimmedLine); matches != nil {
			functionName = matches[1]
		}
		return &stackFrame{
			Raw:          line,
			FunctionName: functionName,
			FileName:     "native",
			IsNative:     true,
		}
	}

	if strings.HasPrefix(trimmedLine, "at ") {
		if matches := namedPattern.FindStringSubmatch(trimmedLine); matches != nil {
			return newFrame(line, matches[1], matches[2], matches[3], matches[4])
		}
		if matches := anonymousPattern.FindStringSubmatch(trimmedLine); matches != nil {
			return newFrame(line, "", matches[1], matches[2], matches[3])
		}
		return nil
	}

	if matches := geckoPattern.FindStringSubmatch(trimmedLine); matches != nil {
		return newFrame(line, matches[1], matches[2], matches[3], matches[4])
	}

	if matches := barePattern.FindStringSubmatch(trimmedLine); matches != nil {
		return newFrame(line, "", matches[1], matches[2], matches[3])
	}

	return nil
}

func newFrame(raw, functionName, fileName, lineText, columnText string) *stackFrame {
	lineNum, err := strconv.Atoi(lineText)
	if err != nil {
		return nil
	}
	colNum, err := strconv.Atoi(columnText)
	if err != nil {
		return nil
	}
	if functionName == "" {
		functionName = "<anonymous>"
	}
	return &stackFrame{
		Raw:          raw,
		FunctionName: functionName,
		FileName:     fileName,
		LineNumber:   &lineNum,
		ColumnNumber: &colNum,
	}
}
